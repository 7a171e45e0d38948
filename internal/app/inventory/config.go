package inventory

import (
	"github.com/sirupsen/logrus"

	"github.com/Overland-East-Bay/stockroom/internal/adapters/httpclient"
	memviewcache "github.com/Overland-East-Bay/stockroom/internal/adapters/memory/viewcache"
	"github.com/Overland-East-Bay/stockroom/internal/platform/clock"
	"github.com/Overland-East-Bay/stockroom/internal/platform/config"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/notify"
)

// NewFromConfig wires the service to the HTTP catalog API, an in-memory view
// cache and the system clock.
func NewFromConfig(cfg config.ClientConfig, notifier notify.Notifier, log logrus.FieldLogger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	api, err := httpclient.New(httpclient.Config{
		BaseURL: cfg.APIURL,
		Timeout: cfg.APITimeout,
		Owner:   cfg.Owner,
	}, log)
	if err != nil {
		return nil, err
	}
	return New(api, memviewcache.NewCache(log), clock.NewSystemClock(), Options{
		Notifier:       notifier,
		Log:            log,
		PageSize:       cfg.ListPageSize,
		NameCheckDelay: cfg.NameCheckDebounce,
	}), nil
}

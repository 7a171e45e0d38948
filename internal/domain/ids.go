package domain

import "strconv"

// OwnerID is the tenant (user) that owns catalog entities. It is the authenticated
// subject; its format is controlled by the identity provider.
type OwnerID string

// ResourceKind names one of the catalog resources managed by the client engine.
type ResourceKind string

const (
	ResourceProducts   ResourceKind = "products"
	ResourceCategories ResourceKind = "categories"
)

// Singular returns the human-facing singular noun ("product", "category").
func (k ResourceKind) Singular() string {
	switch k {
	case ResourceProducts:
		return "product"
	case ResourceCategories:
		return "category"
	default:
		return string(k)
	}
}

// CorrelationToken distinguishes one pending optimistic creation from another.
type CorrelationToken int64

func (t CorrelationToken) String() string { return strconv.FormatInt(int64(t), 10) }

// EntityID identifies a catalog entity either as a server-confirmed record (ServerID)
// or as a client-side placeholder awaiting confirmation (PendingID).
//
// The set of implementations is closed; switch over it exhaustively:
//
//	switch id := e.ID.(type) {
//	case domain.ServerID:
//	case domain.PendingID:
//	}
type EntityID interface {
	isEntityID()
	String() string
}

// ServerID is the stable, opaque identifier assigned by the server at creation.
type ServerID string

func (ServerID) isEntityID()      {}
func (id ServerID) String() string { return string(id) }

// PendingID identifies an optimistic placeholder by its correlation token.
type PendingID struct {
	Token CorrelationToken
}

func (PendingID) isEntityID()      {}
func (id PendingID) String() string { return "pending:" + id.Token.String() }

// IsServerID reports whether id is a confirmed server identifier equal to want.
func IsServerID(id EntityID, want ServerID) bool {
	sid, ok := id.(ServerID)
	return ok && sid == want
}

// IsPendingToken reports whether id is a placeholder carrying token.
func IsPendingToken(id EntityID, token CorrelationToken) bool {
	pid, ok := id.(PendingID)
	return ok && pid.Token == token
}

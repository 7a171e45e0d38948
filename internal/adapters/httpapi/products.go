package httpapi

import (
	"net/http"

	"github.com/Overland-East-Bay/stockroom/internal/adapters/httpapi/dto"
	"github.com/Overland-East-Bay/stockroom/internal/domain"
)

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	q, err := bindListParams(r.URL.Query())
	if err != nil {
		invalidParams(w, r, err)
		return
	}
	s.respond(w, r, func() (int, any, error) {
		page, err := s.Catalog.ListProducts(r.Context(), owner, q)
		if err != nil {
			return 0, nil, err
		}
		out, err := dto.PageFromDomain(page, dto.ProductFromDomain)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, dto.Envelope[dto.Page[dto.Product]]{Data: out}, nil
	})
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	s.respond(w, r, func() (int, any, error) {
		p, err := s.Catalog.GetProduct(r.Context(), owner, pathID(r))
		if err != nil {
			return 0, nil, err
		}
		return productEnvelope(http.StatusOK, p)
	})
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	var body dto.CreateProductRequest
	if !decodeBody(w, r, &body) {
		return
	}
	canon := body
	canon.Name = domain.Normalize(canon.Name)
	s.idempotent(w, r, owner, "/products", canon, func() (int, any, error) {
		p, err := s.Catalog.CreateProduct(r.Context(), owner, body.Fields())
		if err != nil {
			return 0, nil, err
		}
		return productEnvelope(http.StatusCreated, p)
	})
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	var body dto.UpdateProductRequest
	if !decodeBody(w, r, &body) {
		return
	}
	s.respond(w, r, func() (int, any, error) {
		p, err := s.Catalog.UpdateProduct(r.Context(), owner, pathID(r), body.Changes())
		if err != nil {
			return 0, nil, err
		}
		return productEnvelope(http.StatusOK, p)
	})
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	s.respond(w, r, func() (int, any, error) {
		if err := s.Catalog.DeleteProduct(r.Context(), owner, pathID(r)); err != nil {
			return 0, nil, err
		}
		return http.StatusNoContent, nil, nil
	})
}

func (s *Server) checkProductName(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	p, err := bindCheckNameParams(r.URL.Query())
	if err != nil {
		invalidParams(w, r, err)
		return
	}
	s.respond(w, r, func() (int, any, error) {
		unique, err := s.Catalog.CheckProductName(r.Context(), owner, p.Name, p.exclude())
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, dto.Envelope[dto.CheckNameResponse]{Data: dto.CheckNameResponse{IsUnique: unique}}, nil
	})
}

func (s *Server) recordSale(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	var body dto.RecordSaleRequest
	if !decodeBody(w, r, &body) {
		return
	}
	id := pathID(r)
	s.idempotent(w, r, owner, "/products/"+string(id)+"/sales", body, func() (int, any, error) {
		sale, err := s.Catalog.RecordSale(r.Context(), owner, id, body.Quantity)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, dto.Envelope[dto.Sale]{Data: dto.Sale{
			ID:        sale.ID,
			ProductID: string(sale.ProductID),
			Quantity:  sale.Quantity,
			SoldAt:    sale.SoldAt,
		}}, nil
	})
}

func productEnvelope(status int, p domain.Product) (int, any, error) {
	out, err := dto.ProductFromDomain(p)
	if err != nil {
		return 0, nil, err
	}
	return status, dto.Envelope[dto.Product]{Data: out}, nil
}

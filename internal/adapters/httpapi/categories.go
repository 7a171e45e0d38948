package httpapi

import (
	"net/http"

	"github.com/Overland-East-Bay/stockroom/internal/adapters/httpapi/dto"
	"github.com/Overland-East-Bay/stockroom/internal/domain"
)

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
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
		page, err := s.Catalog.ListCategories(r.Context(), owner, q)
		if err != nil {
			return 0, nil, err
		}
		out, err := dto.PageFromDomain(page, dto.CategoryFromDomain)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, dto.Envelope[dto.Page[dto.Category]]{Data: out}, nil
	})
}

func (s *Server) getCategory(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	s.respond(w, r, func() (int, any, error) {
		c, err := s.Catalog.GetCategory(r.Context(), owner, pathID(r))
		if err != nil {
			return 0, nil, err
		}
		return categoryEnvelope(http.StatusOK, c)
	})
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	var body dto.CreateCategoryRequest
	if !decodeBody(w, r, &body) {
		return
	}
	canon := body
	canon.Name = domain.Normalize(canon.Name)
	s.idempotent(w, r, owner, "/categories", canon, func() (int, any, error) {
		c, err := s.Catalog.CreateCategory(r.Context(), owner, body.Fields())
		if err != nil {
			return 0, nil, err
		}
		return categoryEnvelope(http.StatusCreated, c)
	})
}

func (s *Server) updateCategory(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	var body dto.UpdateCategoryRequest
	if !decodeBody(w, r, &body) {
		return
	}
	s.respond(w, r, func() (int, any, error) {
		c, err := s.Catalog.UpdateCategory(r.Context(), owner, pathID(r), body.Changes())
		if err != nil {
			return 0, nil, err
		}
		return categoryEnvelope(http.StatusOK, c)
	})
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	s.respond(w, r, func() (int, any, error) {
		if err := s.Catalog.DeleteCategory(r.Context(), owner, pathID(r)); err != nil {
			return 0, nil, err
		}
		return http.StatusNoContent, nil, nil
	})
}

func (s *Server) checkCategoryName(w http.ResponseWriter, r *http.Request) {
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
		unique, err := s.Catalog.CheckCategoryName(r.Context(), owner, p.Name, p.exclude())
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, dto.Envelope[dto.CheckNameResponse]{Data: dto.CheckNameResponse{IsUnique: unique}}, nil
	})
}

func categoryEnvelope(status int, c domain.Category) (int, any, error) {
	out, err := dto.CategoryFromDomain(c)
	if err != nil {
		return 0, nil, err
	}
	return status, dto.Envelope[dto.Category]{Data: out}, nil
}

package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	orgservice "zkworkspace/internal/org/service"
	"zkworkspace/pkg/platform/httputil"
)

type createOrgRequest struct {
	Name              string         `json:"name"`
	Domain            string         `json:"domain"`
	VerificationModes []string       `json:"verification_modes"`
	TreeRootCurrent   string         `json:"tree_root_current"`
	Settings          map[string]any `json:"settings"`
}

func (h *Handler) handleCreateOrg(w http.ResponseWriter, r *http.Request) {
	var req createOrgRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	var root []byte
	if req.TreeRootCurrent != "" {
		var err error
		if root, err = decodeHex("tree_root_current", req.TreeRootCurrent); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	view, err := h.orgs.CreateOrg(r.Context(), orgservice.CreateOrgRequest{
		Name:              req.Name,
		Domain:            req.Domain,
		VerificationModes: req.VerificationModes,
		TreeRoot:          root,
		Settings:          req.Settings,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleGetOrg(w http.ResponseWriter, r *http.Request) {
	view, err := h.orgs.GetByDomain(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

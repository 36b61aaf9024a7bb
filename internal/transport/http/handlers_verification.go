package httptransport

import (
	"net/http"

	vmodels "zkworkspace/internal/verification/models"
	"zkworkspace/pkg/platform/httputil"
)

type challengeResponse struct {
	DomainVerification *vmodels.Challenge `json:"domain_verification"`
}

type checkFailedResponse struct {
	Error            string            `json:"error"`
	ErrorDescription string            `json:"error_description"`
	Expected         vmodels.Challenge `json:"expected"`
}

func (h *Handler) handleRequestChallenge(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	challenge, err := h.verification.RequestChallenge(r.Context(), orgID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, challengeResponse{DomainVerification: challenge})
}

func (h *Handler) handleCheckOwnership(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.verification.CheckOwnership(r.Context(), orgID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !result.Verified {
		httputil.WriteJSON(w, http.StatusConflict, checkFailedResponse{
			Error:            "txt_record_not_found",
			ErrorDescription: "TXT record not found",
			Expected:         result.Challenge,
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, challengeResponse{DomainVerification: &result.Challenge})
}

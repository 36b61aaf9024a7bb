package httptransport

import (
	"encoding/hex"
	"net/http"
	"time"

	mmodels "zkworkspace/internal/membership/models"
	"zkworkspace/pkg/platform/httputil"
)

type enrollRequest struct {
	Domain           string `json:"domain"`
	MemberCommitment string `json:"member_commitment"`
	NewTreeRoot      string `json:"new_tree_root"`
}

type enrollResponse struct {
	LeafIndex int64 `json:"leaf_index"`
}

type memberResponse struct {
	LeafIndex  int64     `json:"leaf_index"`
	Commitment string    `json:"commitment"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

type listMembersResponse struct {
	Members []memberResponse `json:"members"`
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	commitment, err := decodeHex("member_commitment", req.MemberCommitment)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	root, err := decodeHex("new_tree_root", req.NewTreeRoot)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	enrollment, err := h.membership.Enroll(r.Context(), mmodels.EnrollRequest{
		Domain:      req.Domain,
		Commitment:  commitment,
		NewTreeRoot: root,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, enrollResponse{LeafIndex: enrollment.LeafIndex})
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	members, err := h.membership.ListMembers(r.Context(), orgID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := listMembersResponse{Members: make([]memberResponse, len(members))}
	for i, m := range members {
		resp.Members[i] = memberResponse{
			LeafIndex:  m.LeafIndex,
			Commitment: hex.EncodeToString(m.Commitment),
			EnrolledAt: m.EnrolledAt,
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/courtsideapp/courtside/internal/storage"
)

type EquipmentHandler struct {
	equipment *storage.EquipmentRepository
}

func NewEquipmentHandler(equipment *storage.EquipmentRepository) *EquipmentHandler {
	return &EquipmentHandler{equipment: equipment}
}

func (h *EquipmentHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.equipment.List(r.Context())
	if err != nil {
		internal(w)
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, e := range items {
		out = append(out, map[string]any{
			"equipment_id": e.ID,
			"name":         e.Name,
			"assigned":     e.Assigned,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Assign hands the equipment to the calling account.
func (h *EquipmentHandler) Assign(w http.ResponseWriter, r *http.Request) {
	accountID, equipmentID, ok := h.callerAndEquipment(w, r)
	if !ok {
		return
	}
	if err := h.equipment.Assign(r.Context(), equipmentID, accountID); err != nil {
		if storage.IsNotFound(err) {
			notFound(w, "equipment not found")
			return
		}
		internal(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EquipmentHandler) Release(w http.ResponseWriter, r *http.Request) {
	accountID, equipmentID, ok := h.callerAndEquipment(w, r)
	if !ok {
		return
	}
	if err := h.equipment.Release(r.Context(), equipmentID, accountID); err != nil {
		if storage.IsNotFound(err) {
			notFound(w, "assignment not found")
			return
		}
		internal(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EquipmentHandler) callerAndEquipment(w http.ResponseWriter, r *http.Request) (accountID, equipmentID uuid.UUID, ok bool) {
	accountID, ok = accountIDFromContext(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	equipmentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		invalid(w, "invalid equipment id")
		return uuid.Nil, uuid.Nil, false
	}
	return accountID, equipmentID, true
}

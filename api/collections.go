package api

import (
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/fleetlog/auth"
	"github.com/warp/fleetlog/fleet"
)

// maxCollectionBody caps a collection import.
const maxCollectionBody = 32 << 20

var collectionTables = map[fleet.CollectionName]string{
	fleet.CollectionRiders:    fleet.TableUsers,
	fleet.CollectionMileage:   fleet.TableMileageEntries,
	fleet.CollectionEquipment: fleet.TableEquipmentEntries,
}

// GetCollection returns a collection in the legacy JSON shape.
// Any caller may read currentUser; the rest is admin-only.
func (h *Handler) GetCollection(w http.ResponseWriter, r *http.Request) {
	name, err := fleet.ParseCollectionName(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, "Unknown collection", err)
		return
	}

	c := caller(r)
	if name != fleet.CollectionCurrentUser {
		if err := c.RequireAdmin(); err != nil {
			respondError(w, "Admin access required", err)
			return
		}
	}

	data, err := fleet.GetCollection(r.Context(), h.Store, name, &c.User)
	if err != nil {
		respondError(w, "Failed to read collection", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("[API] Failed to send collection %s: %v", name, err)
	}
}

// PutCollection merges a legacy JSON array into the store in one transaction.
// Existing records not present in the body are left alone.
func (h *Handler) PutCollection(w http.ResponseWriter, r *http.Request) {
	name, err := fleet.ParseCollectionName(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, "Unknown collection", err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCollectionBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	result, err := fleet.SetCollection(ctx, h.Store, name, body, fleet.ImportOptions{
		HashPassword: auth.HashPassword,
		Now:          h.Now,
	})
	if err != nil {
		respondError(w, "Failed to import collection", err)
		return
	}

	entry := h.auditEntry(caller(r), fleet.AuditImport, collectionTables[name], string(name), nil, map[string]any{
		"imported": float64(result.Imported),
		"skipped":  float64(result.Skipped),
	})
	if err := h.Store.AppendAudit(ctx, entry); err != nil {
		log.Printf("[API] Failed to audit import of %s: %v", name, err)
	}
	log.Printf("[API] Imported %s: %d imported, %d skipped", name, result.Imported, result.Skipped)

	writeJSON(w, http.StatusOK, ImportResponse{
		Collection: string(name),
		Imported:   result.Imported,
		Skipped:    result.Skipped,
	})
}

package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hackgods/hospital-admin/internal/bed"
	"github.com/hackgods/hospital-admin/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func listBedsHandler(svc *bed.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := bed.ListFilter{State: bed.State(q.Get("state")), Type: bed.Type(q.Get("type"))}
		if raw := q.Get("floor"); raw != "" {
			floor, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "validation_error", "floor must be an integer")
				return
			}
			f.Floor = &floor
		}

		res, err := svc.List(r.Context(), f)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func getBedHandler(svc *bed.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		d, err := svc.Get(r.Context(), id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func createBedHandler(svc *bed.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bed.CreateInput
		if !decodeJSON(w, r, &req) {
			return
		}
		b, err := svc.Create(r.Context(), principal(r), req)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, b)
	}
}

func updateBedHandler(svc *bed.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req bed.UpdateInput
		if !decodeJSON(w, r, &req) {
			return
		}
		b, err := svc.Update(r.Context(), principal(r), id, req)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func deleteBedHandler(svc *bed.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := svc.Delete(r.Context(), principal(r), id); err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: "bed deleted"})
	}
}

func assignBedHandler(svc *bed.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req bed.AssignInput
		if !decodeJSON(w, r, &req) {
			return
		}
		b, err := svc.Assign(r.Context(), principal(r), id, req)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func releaseBedHandler(svc *bed.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req ReasonRequest
		if !decodeOptionalJSON(w, r, &req) {
			return
		}
		b, err := svc.Release(r.Context(), principal(r), id, req.Reason)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func markBedAvailableHandler(svc *bed.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		b, err := svc.MarkAvailable(r.Context(), principal(r), id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

// exportOccupancyHandler streams the ledger as xlsx. The period defaults to
// the last 30 days.
func exportOccupancyHandler(svc *bed.Service, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, ok := queryTime(w, r, "from", loc)
		if !ok {
			return
		}
		to, ok := queryTime(w, r, "to", loc)
		if !ok {
			return
		}
		end := time.Now().In(loc)
		if to != nil {
			end = *to
		}
		start := end.AddDate(0, 0, -30)
		if from != nil {
			start = *from
		}

		entries, err := svc.Ledger(r.Context(), start, end)
		if err != nil {
			writeAppError(w, r, err)
			return
		}

		var buf bytes.Buffer
		if err := report.WriteOccupancy(&buf, entries, start, end, loc); err != nil {
			writeAppError(w, r, fmt.Errorf("render occupancy export: %w", err))
			return
		}

		name := fmt.Sprintf("occupancy_%s_%s.xlsx", start.Format("20060102"), end.Format("20060102"))
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	}
}

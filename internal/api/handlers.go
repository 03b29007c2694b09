package api

import (
	"net/http"
	"time"

	"github.com/hackgods/hospital-admin/internal/appointment"
	"github.com/hackgods/hospital-admin/internal/auth"
)

// principal is set by Authenticate on every /api route except login.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req appointment.CreateInput
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), principal(r), req)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, appt)
	}
}

func listAppointmentsHandler(svc *appointment.Service, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := appointment.ListFilter{
			Status: appointment.Status(r.URL.Query().Get("status")),
			Page:   queryInt(r, "page"),
			Limit:  queryInt(r, "limit"),
		}
		var ok bool
		if f.DoctorID, ok = queryUUID(w, r, "doctor_id"); !ok {
			return
		}
		if f.PatientID, ok = queryUUID(w, r, "patient_id"); !ok {
			return
		}
		if f.From, ok = queryTime(w, r, "from", loc); !ok {
			return
		}
		if f.To, ok = queryTime(w, r, "to", loc); !ok {
			return
		}

		page, err := svc.ListAppointments(r.Context(), f)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func availabilityHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := queryUUID(w, r, "doctor_id")
		if !ok {
			return
		}
		if doctorID == nil {
			writeError(w, http.StatusBadRequest, "validation_error", "doctor_id is required")
			return
		}

		avail, err := svc.GetAvailability(r.Context(), *doctorID, r.URL.Query().Get("date"))
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, avail)
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func rescheduleAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req appointment.RescheduleInput
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.Reschedule(r.Context(), principal(r), id, req)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func updateStatusHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req StatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.UpdateStatus(r.Context(), principal(r), id, appointment.Status(req.Status), req.Reason)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req ReasonRequest
		if !decodeOptionalJSON(w, r, &req) {
			return
		}

		appt, err := svc.Cancel(r.Context(), principal(r), id, req.Reason)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

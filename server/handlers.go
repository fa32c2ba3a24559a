package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/airis-sh/airis/coordinator"
	"github.com/airis-sh/airis/models"
	"github.com/airis-sh/airis/validation"
	"github.com/gorilla/mux"
)

type ResponsePayload struct {
	Errors  []string    `json:"errors"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

type DeviceStatus struct {
	Connected  bool                `json:"connected"`
	DeviceName string              `json:"device_name"`
	State      string              `json:"state"`
	LastStatus *coordinator.Status `json:"last_status,omitempty"`
}

// Router maps the status & control API
func (app *App) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware, jsonContentMiddleware, recoverMiddleware)

	router.HandleFunc("/status", app.getStatus).Methods("GET")
	router.HandleFunc("/device/connect", app.connectDevice).Methods("POST")
	router.HandleFunc("/device/disconnect", app.disconnectDevice).Methods("POST")
	router.HandleFunc("/device/simulate", app.simulateSignal).Methods("POST")

	router.HandleFunc("/contacts", app.listContacts).Methods("GET")
	router.HandleFunc("/contacts", app.createContact).Methods("POST")
	router.HandleFunc("/contacts/{id:[0-9]+}", app.updateContact).Methods("PUT")
	router.HandleFunc("/contacts/{id:[0-9]+}", app.deleteContact).Methods("DELETE")

	router.HandleFunc("/settings", app.getSettings).Methods("GET")
	router.HandleFunc("/settings", app.updateSettings).Methods("PUT")

	router.HandleFunc("/sos", app.triggerSOS).Methods("POST")
	router.HandleFunc("/alerts", app.listAlerts).Methods("GET")

	return router
}

func (app *App) getStatus(rw http.ResponseWriter, r *http.Request) {
	status := DeviceStatus{
		Connected:  app.session.Connected(),
		DeviceName: app.session.DeviceName(),
		State:      app.session.State().String(),
	}

	if lastStatus, ok := app.coordinator.LastStatus(); ok {
		status.LastStatus = &lastStatus
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: status}, http.StatusOK)
}

func (app *App) connectDevice(rw http.ResponseWriter, r *http.Request) {
	if !app.session.Connect(r.Context()) {
		writeResponse(rw, ResponsePayload{Errors: []string{"unable to connect to device"}}, http.StatusServiceUnavailable)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]interface{}{"device_name": app.session.DeviceName()}}, http.StatusOK)
}

func (app *App) disconnectDevice(rw http.ResponseWriter, r *http.Request) {
	app.session.Disconnect()
	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

// simulateSignal pushes a notification through the demo transport
func (app *App) simulateSignal(rw http.ResponseWriter, r *http.Request) {
	if app.demoTransport == nil {
		writeResponse(rw, ResponsePayload{Errors: []string{"only available in demo mode"}}, http.StatusNotFound)
		return
	}

	data := struct {
		Value *int `json:"value"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data.Value == nil || *data.Value < 0 || *data.Value > 255 {
		writeResponse(rw, ResponsePayload{Errors: []string{"value between 0 and 255 required"}}, http.StatusBadRequest)
		return
	}

	if !app.demoTransport.Notify(byte(*data.Value)) {
		writeResponse(rw, ResponsePayload{Errors: []string{"device not connected"}}, http.StatusConflict)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

func (app *App) listContacts(rw http.ResponseWriter, r *http.Request) {
	writeResponse(rw, ResponsePayload{Success: true, Data: app.store.Contacts()}, http.StatusOK)
}

func (app *App) createContact(rw http.ResponseWriter, r *http.Request) {
	contact := models.Contact{}

	err := json.NewDecoder(r.Body).Decode(&contact)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}
	contact.BaseModel = models.BaseModel{}

	result := validation.ValidateContact(contact)
	if !result.Valid {
		writeResponse(rw, ResponsePayload{Errors: result.Errors}, http.StatusBadRequest)
		return
	}

	err = app.store.AddContact(&contact)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: contact}, http.StatusCreated)
}

func (app *App) updateContact(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	data := make(map[string]interface{})

	err := json.NewDecoder(r.Body).Decode(&data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	removeUnknownFields(data, map[string]bool{"name": true, "phone": true, "email": true})
	if len(data) <= 0 {
		writeResponse(rw, ResponsePayload{Errors: []string{"valid fields required"}}, http.StatusBadRequest)
		return
	}

	contact, err := models.FindContact(vars["id"])
	if errors.Is(err, models.ErrContactNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	// validate the contact as it will look after the update
	merged := *contact
	for field, value := range data {
		str, ok := value.(string)
		if !ok {
			writeResponse(rw, ResponsePayload{Errors: []string{fmt.Sprintf("%v must be a string", field)}}, http.StatusBadRequest)
			return
		}

		switch field {
		case "name":
			merged.Name = str
		case "phone":
			merged.Phone = str
		case "email":
			merged.Email = str
		}
	}

	result := validation.ValidateContact(merged)
	if !result.Valid {
		writeResponse(rw, ResponsePayload{Errors: result.Errors}, http.StatusBadRequest)
		return
	}

	err = app.store.UpdateContact(contact.ID, data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: merged}, http.StatusOK)
}

func (app *App) deleteContact(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	err := app.store.RemoveContact(vars["id"])
	if errors.Is(err, models.ErrContactNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

func (app *App) getSettings(rw http.ResponseWriter, r *http.Request) {
	snap := app.store.Snapshot()
	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]interface{}{
		"message_template": snap.MessageTemplate,
		"sos_enabled":      snap.SosEnabled,
	}}, http.StatusOK)
}

func (app *App) updateSettings(rw http.ResponseWriter, r *http.Request) {
	var errs []string
	data := make(map[string]interface{})

	err := json.NewDecoder(r.Body).Decode(&data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	removeUnknownFields(data, map[string]bool{"message_template": true, "sos_enabled": true})
	if len(data) <= 0 {
		writeResponse(rw, ResponsePayload{Errors: []string{"valid fields required"}}, http.StatusBadRequest)
		return
	}

	if _, ok := data["message_template"]; ok {
		if _, isString := data["message_template"].(string); !isString {
			errs = append(errs, "message_template must be a string")
		}
	}

	if _, ok := data["sos_enabled"]; ok {
		if _, isBool := data["sos_enabled"].(bool); !isBool {
			errs = append(errs, "sos_enabled must be a boolean")
		}
	}

	if len(errs) > 0 {
		writeResponse(rw, ResponsePayload{Errors: errs}, http.StatusBadRequest)
		return
	}

	err = app.store.UpdateSettings(data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

// triggerSOS runs the same alert cycle a device signal does
func (app *App) triggerSOS(rw http.ResponseWriter, r *http.Request) {
	status := app.coordinator.HandleEmergency(r.Context(), models.MANUAL_TRIGGER)

	statusCode := http.StatusOK
	switch {
	case status.Misconfigured():
		statusCode = http.StatusUnprocessableEntity
	case status.Error == coordinator.ALERT_IN_FLIGHT:
		statusCode = http.StatusConflict
	case status.Error != "" || status.Name() == coordinator.ALERT_FAILED:
		statusCode = http.StatusBadGateway
	}

	payload := ResponsePayload{Success: statusCode == http.StatusOK, Data: status}
	if status.Error != "" {
		payload.Errors = []string{status.Error}
	}

	writeResponse(rw, payload, statusCode)
}

func (app *App) listAlerts(rw http.ResponseWriter, r *http.Request) {
	records, paging, err := models.FetchAlertRecords(pageParam(r))
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]interface{}{
		"alerts": records,
		"paging": paging,
	}}, http.StatusOK)
}

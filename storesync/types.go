package storesync

import (
	"net/http"
	"sort"
	"strings"
)

// Result is the envelope every sync operation hands back to its caller.
// Failures never escape this package as raised errors: reads degrade with a
// warning, writes fail with Success=false and a mirrored HTTP status.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`

	// Status mirrors the underlying remote HTTP status where available;
	// handlers use it for the response code.
	Status int `json:"-"`
}

func success(data any) Result {
	return Result{Success: true, Data: data, Status: http.StatusOK}
}

func failure(status int, message string) Result {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Result{Success: false, Error: message, Status: status}
}

func failureFromErr(context string, err error) Result {
	return failure(RemoteStatus(err), context+": "+err.Error())
}

func validationFailure(fieldErrors map[string]string) Result {
	messages := make([]string, 0, len(fieldErrors))
	for _, msg := range fieldErrors {
		messages = append(messages, msg)
	}
	sort.Strings(messages)
	return failure(http.StatusBadRequest, strings.Join(messages, "; "))
}

// RecordInput carries the caller-supplied display fields of a reference
// record. Identity fields are never supplied by callers.
type RecordInput struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
}

type TriggerSyncRequest struct {
	TriggeredBy string `json:"triggeredBy"`
}

type SyncPubSubPayload struct {
	RunPublicId string `json:"run_public_id"`
	Tenant      string `json:"tenant"`
	TriggeredBy string `json:"triggered_by"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

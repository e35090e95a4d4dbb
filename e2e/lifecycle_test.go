package e2e

import (
	"net/http"
	"testing"
)

func TestReset_ToSeparated(t *testing.T) {
	ta := setupApp(t)
	jobID, status := convertedJob(t, ta)
	midiToken := tokenOf(t, status["midiArtifact"])

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/jobs/"+jobID+"/reset", `{"to": "separated"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if body["status"] != "separated" {
		t.Errorf("expected status 'separated', got %v", body["status"])
	}
	if body["midiArtifact"] != nil {
		t.Errorf("expected MIDI artifact to be gone, got %v", body["midiArtifact"])
	}

	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/download/"+midiToken, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

func TestReset_InvalidTarget(t *testing.T) {
	ta := setupApp(t)
	jobID := uploadSong(t, ta)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/jobs/"+jobID+"/reset", `{"to": "converted"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestDelete(t *testing.T) {
	ta := setupApp(t)
	jobID, _ := convertedJob(t, ta)

	resp, err := doAuthRequest(t, ta.app, http.MethodDelete, "/api/jobs/"+jobID, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNoContent)

	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/jobs/"+jobID, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

package e2e

import (
	"fmt"
	"net/http"
	"testing"
)

func TestSeparate_Success(t *testing.T) {
	ta := setupApp(t)
	jobID := uploadSong(t, ta)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/jobs/"+jobID, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if body["status"] != "separated" {
		t.Fatalf("expected status 'separated', got %v (error %v)", body["status"], body["error"])
	}
	stems, ok := body["stems"].(map[string]interface{})
	if !ok || len(stems) != 4 {
		t.Fatalf("expected 4 stems, got %v", body["stems"])
	}
	for name, raw := range stems {
		stem := raw.(map[string]interface{})
		if stem["token"] == "" || stem["token"] == nil {
			t.Errorf("stem %s has no token", name)
		}
		if _, leaked := stem["path"]; leaked {
			t.Errorf("stem %s exposes its path", name)
		}
	}
}

func TestSeparate_NoAuth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doUpload(t, ta.app, "song.wav", toneWAV(t, 440), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestSeparate_UnsupportedType(t *testing.T) {
	ta := setupApp(t)

	resp, err := doUpload(t, ta.app, "notes.txt", []byte("hello"), generateToken(t, "test-user"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestSeparate_MissingFile(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/separate", `{}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestSeparate_FailureMarksJobFailed(t *testing.T) {
	ta := setupAppWith(t, appOptions{separatorErr: errSeparatorDown})
	jobID := uploadSong(t, ta)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/jobs/"+jobID, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body := parseJSON(t, resp)
	if body["status"] != "failed" {
		t.Fatalf("expected status 'failed', got %v", body["status"])
	}
	if body["error"] == nil {
		t.Error("expected error message on failed job")
	}

	convert := fmt.Sprintf(`{"jobId": %q}`, jobID)
	resp, err = doAuthRequest(t, ta.app, http.MethodPost, "/api/convert-to-midi", convert)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestJobStatus_OtherTenant(t *testing.T) {
	ta := setupApp(t)
	jobID := uploadSong(t, ta)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/jobs/"+jobID, "", map[string]string{
		"Authorization": "Bearer " + generateToken(t, "someone-else"),
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

func TestJobStatus_InvalidID(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/jobs/not-a-uuid", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
	if code := errorCode(t, resp); code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %s", code)
	}
}

package api

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
)

func login(t *testing.T, a *API, userID string) *http.Cookie {
	t.Helper()

	if err := a.Links.Put(userID, "TOK1", "userbot"); err != nil {
		t.Fatalf("seed link: %v", err)
	}

	w := doJSON(a, http.MethodPost, "/api/login", `{"user_id":"`+userID+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", w.Code, w.Body.String())
	}
	return sessionCookie(t, w)
}

func TestUploadRequiresSession(t *testing.T) {
	a, _ := newTestAPI(t)

	buf, ct := multipartVideo(t, "video", mp4Bytes("data"), "")
	w := doUpload(a, buf, ct)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("upload without cookie returned %d", w.Code)
	}
	if body := decodeBody(t, w); body["error"] != "Not logged in" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestUploadDeliversOriginalBytes(t *testing.T) {
	a, ftg := newTestAPI(t)
	ck := login(t, a, "12345")

	payload := mp4Bytes(strings.Repeat("frame", 2048))
	before := stagedUploads(t)

	buf, ct := multipartVideo(t, "video", payload, "holiday clip")
	w := doUpload(a, buf, ct, ck)

	if w.Code != http.StatusOK {
		t.Fatalf("upload returned %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["success"] != true {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["compressed"] != false {
		t.Fatal("no encoder is present, upload must not claim compression")
	}
	if int64(body["original_size"].(float64)) != int64(len(payload)) {
		t.Fatalf("original_size = %v, want %d", body["original_size"], len(payload))
	}
	if int64(body["final_size"].(float64)) != int64(len(payload)) {
		t.Fatalf("final_size = %v, want %d", body["final_size"], len(payload))
	}

	// Round-trip identity: the bot got exactly what was uploaded
	if !bytes.Equal(ftg.videoBody, payload) {
		t.Fatalf("delivered %d bytes, uploaded %d", len(ftg.videoBody), len(payload))
	}
	if ftg.videoChatID != "12345" {
		t.Fatalf("delivered to chat %q, want 12345", ftg.videoChatID)
	}
	if ftg.videoCaption != "holiday clip" {
		t.Fatalf("caption = %q", ftg.videoCaption)
	}

	assertNoNewTempFiles(t, before)
}

func TestUploadDeliveryFailureSurfacesDescription(t *testing.T) {
	a, ftg := newTestAPI(t)
	ck := login(t, a, "12345")

	ftg.videoErr = "Forbidden: bot was blocked by the user"
	before := stagedUploads(t)

	buf, ct := multipartVideo(t, "video", mp4Bytes("data"), "")
	w := doUpload(a, buf, ct, ck)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("failed delivery returned %d", w.Code)
	}
	if body := decodeBody(t, w); body["error"] != "Forbidden: bot was blocked by the user" {
		t.Fatalf("upstream description not surfaced: %v", body)
	}

	// Cleanup runs on the failure path too
	assertNoNewTempFiles(t, before)
}

func TestUploadWithoutFile(t *testing.T) {
	a, _ := newTestAPI(t)
	ck := login(t, a, "12345")

	buf, ct := multipartVideo(t, "", nil, "just a caption")
	w := doUpload(a, buf, ct, ck)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("upload without file returned %d", w.Code)
	}
	if body := decodeBody(t, w); body["error"] != "No file provided" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestUploadRejectsWrongType(t *testing.T) {
	a, _ := newTestAPI(t)
	ck := login(t, a, "12345")

	before := stagedUploads(t)

	buf, ct := multipartVideo(t, "video", []byte("definitely not a video"), "")
	w := doUpload(a, buf, ct, ck)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("non-video upload returned %d", w.Code)
	}

	assertNoNewTempFiles(t, before)
}

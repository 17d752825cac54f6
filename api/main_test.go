package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
)

// Minimal mp4 header (ftyp box) so mimetype sniffing sees a real video.
var mp4Header = []byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm',
	0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'i', 's', 'o', '2',
}

func mp4Bytes(payload string) []byte {
	return append(append([]byte{}, mp4Header...), []byte(payload)...)
}

// fakeTelegram answers every Bot API method with a generic ok and
// records sendVideo deliveries.
type fakeTelegram struct {
	srv *httptest.Server

	mu           sync.Mutex
	videoBody    []byte
	videoChatID  string
	videoCaption string
	videoErr     string // non-empty makes sendVideo fail with this description
}

func newFakeTelegram(t *testing.T) *fakeTelegram {
	t.Helper()

	f := &fakeTelegram{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendVideo") {
			fmt.Fprint(w, `{"ok":true,"result":{}}`)
			return
		}

		f.mu.Lock()
		defer f.mu.Unlock()

		if f.videoErr != "" {
			json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": f.videoErr})
			return
		}

		if err := r.ParseMultipartForm(256 << 20); err != nil {
			fmt.Fprint(w, `{"ok":false,"description":"bad multipart"}`)
			return
		}
		f.videoChatID = r.FormValue("chat_id")
		f.videoCaption = r.FormValue("caption")

		file, _, err := r.FormFile("video")
		if err != nil {
			fmt.Fprint(w, `{"ok":false,"description":"no video field"}`)
			return
		}
		defer file.Close()
		f.videoBody, _ = io.ReadAll(file)

		fmt.Fprint(w, `{"ok":true,"result":{}}`)
	}))
	t.Cleanup(f.srv.Close)

	return f
}

func newTestAPI(t *testing.T) (*API, *fakeTelegram) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	ftg := newFakeTelegram(t)

	viper.Set("app.log_level", "error")
	viper.Set("host.frontend_origin", "http://localhost:5173")
	viper.Set("db.path", filepath.Join(t.TempDir(), "api_test.db"))
	viper.Set("session.ttl_hours", 24)
	viper.Set("upload.max_size", int64(200<<20))
	viper.Set("upload.target_size", int64(10))
	viper.Set("ffmpeg.path", "no-such-encoder-binary")
	viper.Set("telegram.api_url", ftg.srv.URL)
	viper.Set("telegram.main_bot_token", "MAIN")

	a, err := NewRouter()
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	return a, ftg
}

func doJSON(a *API, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, ck := range w.Result().Cookies() {
		if ck.Name == "session_id" && ck.Value != "" {
			return ck
		}
	}
	t.Fatalf("no session_id cookie in response")
	return nil
}

// multipartVideo builds an upload body. An empty field name skips the
// file part entirely.
func multipartVideo(t *testing.T, field string, data []byte, caption string) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	if caption != "" {
		mw.WriteField("caption", caption)
	}

	if field != "" {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="clip.mp4"`, field))
		h.Set("Content-Type", "video/mp4")

		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		part.Write(data)
	}

	mw.Close()
	return buf, mw.FormDataContentType()
}

func doUpload(a *API, buf *bytes.Buffer, contentType string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/upload", buf)
	req.Header.Set("Content-Type", contentType)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	return w
}

// stagedUploads snapshots the temp-file namespace used by the upload
// handler so tests can prove nothing leaked.
func stagedUploads(t *testing.T) map[string]bool {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(os.TempDir(), "upload-*.mp4"))
	if err != nil {
		t.Fatalf("glob temp dir: %v", err)
	}

	set := make(map[string]bool, len(matches))
	for _, m := range matches {
		set[m] = true
	}
	return set
}

func assertNoNewTempFiles(t *testing.T, before map[string]bool) {
	t.Helper()

	for p := range stagedUploads(t) {
		if !before[p] {
			t.Fatalf("temporary file leaked: %s", p)
		}
	}
}

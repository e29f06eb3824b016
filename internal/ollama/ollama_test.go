package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/earthback/loraprep/internal/providers"
)

func TestDescribe(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected /api/generate, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "A printer on a desk."})
	}))
	defer server.Close()

	o := New(server.URL + "/")
	text, err := o.Describe(context.Background(), providers.Config{
		Model:  "llava",
		Prompt: "describe",
		Image:  []byte{0xff, 0xd8},
	})
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if text != "A printer on a desk." {
		t.Errorf("Expected model response, got %q", text)
	}

	images, ok := got["images"].([]interface{})
	if !ok || len(images) != 1 {
		t.Fatalf("Expected one image in request, got %v", got["images"])
	}
	if images[0] != base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8}) {
		t.Errorf("Expected base64 image, got %v", images[0])
	}
	if got["model"] != "llava" || got["stream"] != false {
		t.Errorf("Unexpected request body: %v", got)
	}
}

func TestDescribeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := New(server.URL).Describe(context.Background(), providers.Config{Model: "x"}); err == nil {
		t.Error("Expected an error for a non-200 response")
	}
}

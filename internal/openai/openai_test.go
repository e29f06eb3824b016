package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/earthback/loraprep/internal/providers"
)

func TestDescribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("Expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		var body struct {
			Messages []struct {
				Content []map[string]interface{} `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if len(body.Messages) != 1 || len(body.Messages[0].Content) != 2 {
			t.Fatalf("Expected text and image parts, got %+v", body)
		}
		img := body.Messages[0].Content[1]["image_url"].(map[string]interface{})
		if !strings.HasPrefix(img["url"].(string), "data:image/png;base64,") {
			t.Errorf("Expected png data URI, got %v", img["url"])
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Hempcrete wall"}}]}`))
	}))
	defer server.Close()

	o := New("sk-test").WithURL(server.URL)
	text, err := o.Describe(context.Background(), providers.Config{
		Model:    "gpt-4o-mini",
		Prompt:   "describe",
		Image:    []byte("png"),
		MIMEType: "image/png",
	})
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if text != "Hempcrete wall" {
		t.Errorf("Expected Hempcrete wall, got %q", text)
	}
}

func TestDescribeRequiresKey(t *testing.T) {
	if _, err := New("").Describe(context.Background(), providers.Config{}); err == nil {
		t.Error("Expected an error without an API key")
	}
}

func TestDescribeNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	if _, err := New("k").WithURL(server.URL).Describe(context.Background(), providers.Config{}); err == nil {
		t.Error("Expected an error when no choices are returned")
	}
}

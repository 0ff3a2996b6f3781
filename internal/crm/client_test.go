package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient(t *testing.T) {
	config := Config{
		BaseURL:     "https://api.example-crm.net/98765",
		Username:    "testuser",
		Password:    "testpass",
		AccountCode: "test_account",
		ListID:      "2001",
	}

	client := NewClient(config)

	if client.baseURL != config.BaseURL {
		t.Errorf("Expected baseURL %s, got %s", config.BaseURL, client.baseURL)
	}
	if client.username != config.Username {
		t.Errorf("Expected username %s, got %s", config.Username, client.username)
	}
	if client.accountCode != config.AccountCode {
		t.Errorf("Expected accountCode %s, got %s", config.AccountCode, client.accountCode)
	}
}

func TestGetContactLabels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X_USERNAME") == "" {
			t.Error("Missing X_USERNAME header")
		}
		if r.Header.Get("X_PASSWORD") == "" {
			t.Error("Missing X_PASSWORD header")
		}
		if r.Header.Get("X_ACCOUNT_CODE") == "" {
			t.Error("Missing X_ACCOUNT_CODE header")
		}

		response := LabelsResponse{
			Metadata: ResponseMetadata{Error: false, Total: "3"},
			Payload:  []string{"VIP Customer", "SYS:OGI_V1 - Active", "Refund Requested"},
		}
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL:     server.URL,
		Username:    "test",
		Password:    "test",
		AccountCode: "test",
	})

	labels, err := client.GetContactLabels(context.Background(), "student@example.com")
	if err != nil {
		t.Fatalf("GetContactLabels failed: %v", err)
	}
	if len(labels) != 3 {
		t.Errorf("Expected 3 labels, got %d", len(labels))
	}
	if labels[0] != "VIP Customer" {
		t.Errorf("Unexpected first label %q", labels[0])
	}
}

func TestAddLabel_SendsBody(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody mutateLabelRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(statusResponse{})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Username: "u", Password: "p", AccountCode: "a"})

	if err := client.AddLabel(context.Background(), "student@example.com", "SYS:OGI_V1 - Active"); err != nil {
		t.Fatalf("AddLabel: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %s", gotMethod)
	}
	if gotPath != "/api/contacts/student@example.com/labels" {
		t.Errorf("path = %s", gotPath)
	}
	if gotBody.Label != "SYS:OGI_V1 - Active" {
		t.Errorf("label = %q", gotBody.Label)
	}
}

func TestRemoveLabel_APIErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(statusResponse{Metadata: ResponseMetadata{Error: true}})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Username: "u", Password: "p", AccountCode: "a"})

	if err := client.RemoveLabel(context.Background(), "student@example.com", "SYS:OGI_V1 - Active"); err == nil {
		t.Error("expected error from error envelope")
	}
}

func TestListAllContacts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := ContactsResponse{
			Metadata: ResponseMetadata{Error: false, Total: "2"},
			Payload:  []Contact{{Email: "a@example.com"}, {Email: "b@example.com"}},
		}
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Username: "u", Password: "p", AccountCode: "a"})

	contacts, err := client.ListAllContacts(context.Background())
	if err != nil {
		t.Fatalf("ListAllContacts: %v", err)
	}
	if len(contacts) != 2 {
		t.Errorf("Expected 2 contacts, got %d", len(contacts))
	}
}

package joke

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestValidateCategories(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		want    []string
		wantErr string
	}{
		{"empty defaults to any", nil, []string{"any"}, ""},
		{"single valid", []string{"pun"}, []string{"pun"}, ""},
		{"case folded", []string{"Programming"}, []string{"programming"}, ""},
		{"multiple valid", []string{"dark", "spooky"}, []string{"dark", "spooky"}, ""},
		{"single invalid", []string{"knockknock"}, nil, "Invalid joke category 'knockknock'"},
		{"multiple invalid", []string{"knockknock", "dad"}, nil, "Invalid joke categories 'dad, knockknock'"},
		{"mixed still rejects", []string{"pun", "dad"}, nil, "Invalid joke category 'dad'"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ValidateCategories(tt.args)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatal("expected error")
				}
				if err.Error() != tt.wantErr {
					t.Errorf("error: %q, want %q", err.Error(), tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("categories: %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("categories: %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestCategoriesListsAllSorted(t *testing.T) {
	t.Parallel()

	got := Categories()
	want := []string{"any", "christmas", "dark", "misc", "programming", "pun", "spooky"}
	if len(got) != len(want) {
		t.Fatalf("categories: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("categories: %v, want %v", got, want)
		}
	}
}

func TestFetchSingleJoke(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/joke/") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":false,"type":"single","joke":"A very funny joke."}`))
	}))
	defer srv.Close()

	c := NewClientWithBase(srv.URL, srv.Client())
	j, err := c.Fetch(context.Background(), []string{"pun"})
	if err != nil {
		t.Fatal(err)
	}
	if j.Type != "single" || j.Joke != "A very funny joke." {
		t.Errorf("joke: %+v", j)
	}
}

func TestFetchTwoPartJoke(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/joke/dark,pun" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":false,"type":"twopart","setup":"Why?","delivery":"Because."}`))
	}))
	defer srv.Close()

	c := NewClientWithBase(srv.URL, srv.Client())
	j, err := c.Fetch(context.Background(), []string{"dark", "pun"})
	if err != nil {
		t.Fatal(err)
	}
	if j.Type != "twopart" || j.Setup != "Why?" || j.Delivery != "Because." {
		t.Errorf("joke: %+v", j)
	}
}

func TestFetchAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":true,"message":"No matching joke found"}`))
	}))
	defer srv.Close()

	c := NewClientWithBase(srv.URL, srv.Client())
	if _, err := c.Fetch(context.Background(), []string{"any"}); err == nil {
		t.Fatal("expected error for API error payload")
	}
}

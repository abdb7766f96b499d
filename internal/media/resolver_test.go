package media

import "testing"

func TestIsURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"http://youtu.be/dQw4w9WgXcQ", true},
		{"  https://youtu.be/abc  ", true},
		{"never gonna give you up", false},
		{"youtube.com/watch?v=abc", false},
		{"", false},
		{"https://", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := IsURL(tt.input); got != tt.want {
				t.Errorf("IsURL(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestPlaylistID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"watch url with list", "https://www.youtube.com/watch?v=abc&list=PL123", "PL123"},
		{"playlist url", "https://www.youtube.com/playlist?list=PLxyz", "PLxyz"},
		{"plain video", "https://www.youtube.com/watch?v=abc", ""},
		{"not a url", "some search term", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := PlaylistID(tt.input); got != tt.want {
				t.Errorf("PlaylistID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestVideoID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"short url", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"short url no www", "https://www.youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"shorts url", "https://www.youtube.com/shorts/abc123", "abc123", false},
		{"watch with extra params", "https://www.youtube.com/watch?v=abc&t=30s", "abc", false},
		{"no id", "https://www.youtube.com/feed/subscriptions", "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := VideoID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("VideoID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

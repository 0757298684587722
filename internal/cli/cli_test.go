package cli

import (
	"path/filepath"
	"testing"

	"github.com/anatolykoptev/go_hh/internal/letter"
	"github.com/anatolykoptev/go_hh/internal/store"
)

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name, input, want string
		wantErr           bool
	}{
		{"bare code", "ABC123", "ABC123", false},
		{"redirect url", "hhandroid://oauthresponse?code=XYZ", "XYZ", false},
		{"https url", "https://example.com/cb?state=s&code=QQQ", "QQQ", false},
		{"url without code", "hhandroid://oauthresponse?state=s", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractCode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("extractCode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("extractCode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestApplySpecFromSettings(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	if _, err := applySpec(st); err == nil {
		t.Error("expected error without a selected résumé")
	}

	if err := st.Set(store.KeySelectedResumeID, "r-1"); err != nil {
		t.Fatal(err)
	}
	spec, err := applySpec(st)
	if err != nil {
		t.Fatalf("applySpec: %v", err)
	}
	if spec.ResumeID != "r-1" {
		t.Errorf("ResumeID = %q", spec.ResumeID)
	}
	if spec.CoverLetter != letter.DefaultTemplate {
		t.Error("empty cover letter must fall back to the default template")
	}
	if spec.AlwaysAttach {
		t.Error("AlwaysAttach must default to false")
	}

	st.Set(store.KeySearchQuery, "golang")
	st.Set(store.KeyCoverLetter, "custom %firstName%")
	st.SetBool(store.KeyAlwaysAttach, true)

	spec, err = applySpec(st)
	if err != nil {
		t.Fatalf("applySpec: %v", err)
	}
	if spec.SearchQuery != "golang" || spec.CoverLetter != "custom %firstName%" || !spec.AlwaysAttach {
		t.Errorf("spec = %+v", spec)
	}
}

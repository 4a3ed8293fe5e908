package store

import (
	"testing"

	"github.com/aiopstack/graph-rca/internal/models"
)

func TestSafeLabel(t *testing.T) {
	valid := []models.NodeCategory{"Pod", "LogEntry", "Device_V2", "trace9"}
	for _, category := range valid {
		if _, err := safeLabel(category); err != nil {
			t.Fatalf("expected %q valid, got %v", category, err)
		}
	}

	invalid := []models.NodeCategory{"", "Pod Entry", "Pod;DETACH DELETE n", "Pod-X", "Pod`"}
	for _, category := range invalid {
		if _, err := safeLabel(category); err == nil {
			t.Fatalf("expected %q rejected", category)
		}
	}
}

func TestNormalizeCategory(t *testing.T) {
	cases := []struct {
		raw  string
		want models.NodeCategory
	}{
		{"service", models.CategoryService},
		{"Service", models.CategoryService},
		{"db", models.CategoryDatabase},
		{"database", models.CategoryDatabase},
		{"cache", models.CategoryCache},
		{"mq", models.CategoryMessageQueue},
		{"message-queue", models.CategoryMessageQueue},
		{"sidecar", models.CategorySidecar},
		{"router", models.CategoryRouter},
		{"switch", models.CategorySwitch},
		{"toaster", models.CategoryUnknown},
		{"", models.CategoryUnknown},
	}
	for _, tc := range cases {
		if got := NormalizeCategory(tc.raw); got != tc.want {
			t.Fatalf("%q: expected %s, got %s", tc.raw, tc.want, got)
		}
	}
}

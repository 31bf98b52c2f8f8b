package environ

import (
	"testing"
	"time"
)

func TestEnviron(t *testing.T) {
	if GetInt("GP_TEST_INTEGER", -1) != -1 {
		t.Fatalf("wanted -1")
	}

	if GetString("GP_TEST_STRING", "example") != "example" {
		t.Fatalf("wanted example")
	}

	if GetBool("GP_TEST_BOOL", true) != true {
		t.Fatalf("wanted true")
	}

	t.Setenv("GP_TEST_INTEGER", "3")
	t.Setenv("GP_TEST_STRING", "chrome-node")
	t.Setenv("GP_TEST_BOOL", "false")
	t.Setenv("GP_TEST_DURATION", "15s")

	if GetInt("GP_TEST_INTEGER", -5) != 3 {
		t.Fatalf("wanted 3")
	}

	if GetString("GP_TEST_STRING", "invalid") != "chrome-node" {
		t.Fatalf("wanted chrome-node")
	}

	if GetBool("GP_TEST_BOOL", true) != false {
		t.Fatalf("wanted false")
	}

	if GetDuration("GP_TEST_DURATION", time.Second) != 15*time.Second {
		t.Fatalf("wanted 15s")
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("GP_TEST_INTEGER", "three")
	t.Setenv("GP_TEST_DURATION", "soon")

	if GetInt("GP_TEST_INTEGER", 1) != 1 {
		t.Fatalf("wanted fallback 1")
	}

	if GetDuration("GP_TEST_DURATION", time.Minute) != time.Minute {
		t.Fatalf("wanted fallback 1m")
	}
}

func TestPrefixedKeyWins(t *testing.T) {
	t.Setenv("GP_TEST_NAMESPACE", "default")
	t.Setenv(Prefix+"GP_TEST_NAMESPACE", "selenium")

	if got := GetString("GP_TEST_NAMESPACE", ""); got != "selenium" {
		t.Fatalf("wanted selenium, got %s", got)
	}
}

func TestGetStringSlice(t *testing.T) {
	fallback := []string{"a"}

	if got := GetStringSlice("GP_TEST_SLICE", fallback); len(got) != 1 || got[0] != "a" {
		t.Fatalf("wanted fallback, got %v", got)
	}

	t.Setenv("GP_TEST_SLICE", "go, test ,,-v")
	got := GetStringSlice("GP_TEST_SLICE", fallback)
	if len(got) != 3 || got[0] != "go" || got[1] != "test" || got[2] != "-v" {
		t.Fatalf("unexpected slice %v", got)
	}

	t.Setenv("GP_TEST_SLICE", " , ")
	if got := GetStringSlice("GP_TEST_SLICE", fallback); len(got) != 1 {
		t.Fatalf("wanted fallback for blank value, got %v", got)
	}
}

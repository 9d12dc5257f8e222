package reusesocketd

import (
	"io/ioutil"
	"os"
	"testing"
)

func TestUmaskFromFlags(t *testing.T) {
	cases := []struct {
		world, group, user bool
		want                UmaskMode
	}{
		{false, false, false, UmaskDefault},
		{true, false, false, UmaskWorld},
		{false, true, false, UmaskGroup},
		{false, false, true, UmaskUser},
		{true, true, true, UmaskWorld}, // world checked first
	}
	for _, c := range cases {
		if got := umaskFromFlags(c.world, c.group, c.user); got != c.want {
			t.Errorf("umaskFromFlags(%v,%v,%v) = %v, want %v", c.world, c.group, c.user, got, c.want)
		}
	}
}

func TestUmaskFromName(t *testing.T) {
	cases := map[string]UmaskMode{
		"world":   UmaskWorld,
		"group":   UmaskGroup,
		"user":    UmaskUser,
		"":        UmaskDefault,
		"bogus":   UmaskDefault,
	}
	for name, want := range cases {
		if got := umaskFromName(name); got != want {
			t.Errorf("umaskFromName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestMergeFilePrefersCLIOverFile(t *testing.T) {
	c := &Config{Capacity: 500, Keepalive: 60, Drop: "nobody:nobody"}
	fc := &fileConfig{Capacity: 999, Keepalive: 999, Drop: "other:other"}
	c.mergeFile(fc)
	if c.Capacity != 500 {
		t.Errorf("Capacity = %d, want CLI value 500 preserved", c.Capacity)
	}
	if c.Keepalive != 60 {
		t.Errorf("Keepalive = %v, want CLI value 60 preserved", c.Keepalive)
	}
	if c.Drop != "nobody:nobody" {
		t.Errorf("Drop = %q, want CLI value preserved", c.Drop)
	}
}

func TestMergeFileFillsDefaults(t *testing.T) {
	c := &Config{Capacity: DefaultCapacity, Keepalive: DefaultKeepalive.Seconds()}
	fc := &fileConfig{Capacity: 42, Keepalive: 17, Verbose: true, AdminAddr: "127.0.0.1:9600"}
	c.mergeFile(fc)
	if c.Capacity != 42 {
		t.Errorf("Capacity = %d, want 42 from file", c.Capacity)
	}
	if c.Keepalive != 17 {
		t.Errorf("Keepalive = %v, want 17 from file", c.Keepalive)
	}
	if !c.Verbose {
		t.Error("expected Verbose to be filled in from file")
	}
	if c.AdminAddr != "127.0.0.1:9600" {
		t.Errorf("AdminAddr = %q, want value from file", c.AdminAddr)
	}
}

func TestLoadFileConfig(t *testing.T) {
	f, err := ioutil.TempFile("", "reusesocketd-config-test")
	if err != nil {
		t.Fatalf("TempFile: %v", err)
	}
	defer os.Remove(f.Name())
	yamlBody := "capacity: 250\nkeepalive: 30\nverbose: true\numask: user\n"
	if _, err := f.WriteString(yamlBody); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	f.Close()

	fc, err := loadFileConfig(f.Name())
	if err != nil {
		t.Fatalf("loadFileConfig: %v", err)
	}
	if fc.Capacity != 250 {
		t.Errorf("Capacity = %d, want 250", fc.Capacity)
	}
	if fc.Keepalive != 30 {
		t.Errorf("Keepalive = %v, want 30", fc.Keepalive)
	}
	if !fc.Verbose {
		t.Error("expected Verbose=true")
	}
	if fc.Umask != "user" {
		t.Errorf("Umask = %q, want \"user\"", fc.Umask)
	}
}

func TestLoadFileConfigMissingFile(t *testing.T) {
	if _, err := loadFileConfig("/nonexistent/path/reusesocketd.yaml"); err == nil {
		t.Error("expected an error reading a nonexistent config file")
	}
}

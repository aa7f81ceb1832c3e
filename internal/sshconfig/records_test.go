package sshconfig

import (
	"strings"
	"testing"

	"github.com/treykane/termgrid/internal/model"
	"github.com/treykane/termgrid/internal/protocol"
)

func TestToRecords(t *testing.T) {
	hosts := []Host{
		{Alias: "web", HostName: "10.0.0.5", User: "deploy", Port: 22},
		{Alias: "db", HostName: "10.0.0.6", Port: 2222},
		{Alias: "dup", HostName: "10.0.0.9", User: "root"},
		{Alias: "nouser", HostName: "10.0.0.7"},
	}
	existing := []model.ServerRecord{{ID: 1, Host: "10.0.0.9", Protocol: protocol.SSH, Username: "root"}}

	got, skipped := ToRecords(hosts, existing, ImportOptions{Group: "imported", DefaultUser: "admin"})
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d: %+v", len(got), got)
	}
	if got[0].Username != "deploy" || got[0].Port != 0 || got[0].Group != "imported" {
		t.Fatalf("unexpected first record: %+v", got[0])
	}
	if got[1].Username != "admin" || got[1].Port != 2222 {
		t.Fatalf("default user or port not applied: %+v", got[1])
	}
	if len(skipped) != 1 || skipped[0].Alias != "dup" {
		t.Fatalf("expected dup to be skipped, got %+v", skipped)
	}

	_, skipped = ToRecords(hosts[3:], nil, ImportOptions{})
	if len(skipped) != 1 || !strings.Contains(skipped[0].Reason, "username") {
		t.Fatalf("expected username validation skip, got %+v", skipped)
	}
}

func TestRender(t *testing.T) {
	records := []model.ServerRecord{
		{ID: 1, Name: "Web Server", Host: "10.0.0.5", Protocol: protocol.SSH, Username: "root"},
		{ID: 2, Name: "web server", Host: "10.0.0.6", Protocol: protocol.SFTP, Username: "ftp", Port: 2222},
		{ID: 3, Name: "desk", Host: "10.0.1.9", Protocol: protocol.RDP},
	}
	out := Render(records)
	for _, want := range []string{
		"Host web-server\n  HostName 10.0.0.5\n  User root\n",
		"Host web-server-2\n  HostName 10.0.0.6\n  User ftp\n  Port 2222\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing block %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "desk") {
		t.Fatalf("rdp records must not be exported:\n%s", out)
	}
}

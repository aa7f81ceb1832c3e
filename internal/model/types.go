package model

import (
	"net/netip"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/treykane/termgrid/internal/errs"
	"github.com/treykane/termgrid/internal/protocol"
	"github.com/treykane/termgrid/internal/util"
)

// Protocol is the registry name of a remote-access protocol.
type Protocol = protocol.Name

// OSTag is the operating system of a target, used to pick a launch strategy.
type OSTag string

const (
	OSWindows OSTag = "windows"
	OSLinux   OSTag = "linux"
	OSMacOS   OSTag = "macos"
	OSBSD     OSTag = "bsd"
	OSNetwork OSTag = "network"
	OSOther   OSTag = "other"
)

var osTags = []OSTag{OSWindows, OSLinux, OSMacOS, OSBSD, OSNetwork, OSOther}

// AllOS returns the known OS tags in display order.
func AllOS() []OSTag {
	return append([]OSTag(nil), osTags...)
}

// ParseOS normalizes s into a known tag. Empty input is OSOther and "mac" is
// accepted for OSMacOS.
func ParseOS(s string) (OSTag, error) {
	v := OSTag(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case "":
		return OSOther, nil
	case "mac", "darwin", "osx":
		return OSMacOS, nil
	}
	for _, known := range osTags {
		if v == known {
			return v, nil
		}
	}
	return v, errs.NewValidationError("os", "unknown operating system "+string(v))
}

// Icon returns the display icon of the tag.
func (o OSTag) Icon() string {
	return protocol.OSIcon(string(o))
}

// ServerRecord is one inventory entry.
type ServerRecord struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Host      string    `json:"host"`
	Protocol  Protocol  `json:"protocol"`
	Username  string    `json:"username,omitempty"`
	Port      int       `json:"port,omitempty"`
	OS        OSTag     `json:"os"`
	Tags      []string  `json:"tags,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Group     string    `json:"group,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Clone returns a copy that shares no slices with r.
func (r ServerRecord) Clone() ServerRecord {
	out := r
	if r.Tags != nil {
		out.Tags = append([]string(nil), r.Tags...)
	}
	return out
}

// EffectivePort is the explicit port, or the protocol default when unset.
func (r ServerRecord) EffectivePort() int {
	return util.EffectivePort(r.Port, protocol.DefaultPort(r.Protocol))
}

// Target renders user@host:port for display.
func (r ServerRecord) Target() string {
	host := r.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	target := host
	if port := r.EffectivePort(); port > 0 {
		target += ":" + strconv.Itoa(port)
	}
	if r.Username != "" {
		target = r.Username + "@" + target
	}
	return target
}

// Normalize trims every field, lowercases protocol and OS, folds OS aliases
// and normalizes tags. Unknown values are left for Validate to reject.
func Normalize(r ServerRecord) ServerRecord {
	out := r.Clone()
	out.Name = strings.TrimSpace(out.Name)
	out.Host = strings.TrimSpace(out.Host)
	out.Username = strings.TrimSpace(out.Username)
	out.Group = strings.TrimSpace(out.Group)
	out.Notes = strings.TrimSpace(out.Notes)
	out.Protocol = Protocol(strings.ToLower(strings.TrimSpace(string(out.Protocol))))
	out.OS, _ = ParseOS(string(out.OS))
	out.Tags = NormalizeTags(out.Tags)
	return out
}

// Validate returns the first failing field of r. It expects a normalized
// record.
func Validate(r ServerRecord) error {
	if r.Name == "" {
		return errs.NewValidationError("name", "name is required")
	}
	if util.HasControl(r.Name) {
		return errs.NewValidationError("name", "contains control characters")
	}
	if err := validateHost(r.Host); err != nil {
		return err
	}
	info, err := protocol.Lookup(r.Protocol)
	if err != nil {
		return err
	}
	if err := validateToken("username", r.Username, info.RequiresUsername); err != nil {
		return err
	}
	if r.Port != 0 {
		if err := util.ValidatePort(r.Port); err != nil {
			return errs.NewValidationError("port", err.Error())
		}
	}
	if _, err := ParseOS(string(r.OS)); err != nil {
		return err
	}
	for _, tag := range r.Tags {
		if strings.Contains(tag, ",") || util.HasControl(tag) {
			return errs.NewValidationError("tags", "tag "+tag+" contains a comma or control character")
		}
	}
	return nil
}

// validateToken checks a value that ends up as (part of) an argv element.
func validateToken(field, v string, required bool) error {
	if v == "" {
		if required {
			return errs.NewValidationError(field, field+" is required")
		}
		return nil
	}
	if util.HasSpace(v) || util.HasControl(v) {
		return errs.NewValidationError(field, "must not contain whitespace or control characters")
	}
	if strings.HasPrefix(v, "-") {
		return errs.NewValidationError(field, "must not begin with '-'")
	}
	return nil
}

// validateHost accepts an IP literal (IPv6 zones allowed) or an RFC 1123
// hostname.
func validateHost(h string) error {
	if h == "" {
		return errs.NewValidationError("host", "host is required")
	}
	if addr, err := netip.ParseAddr(h); err == nil {
		if addr.Zone() == "" || isHostname(addr.Zone(), true) {
			return nil
		}
		return errs.NewValidationError("host", "invalid IPv6 zone")
	}
	if !isHostname(h, false) {
		return errs.NewValidationError("host", "must be a hostname or IP address")
	}
	return nil
}

// isHostname checks dot-separated labels of letters, digits and hyphens.
// Labels may not begin or end with a hyphen. A zone may also hold
// underscores and dots anywhere.
func isHostname(s string, zone bool) bool {
	if s == "" || len(s) > 253 {
		return false
	}
	if zone {
		for _, c := range s {
			if !isAlnum(c) && c != '-' && c != '_' && c != '.' {
				return false
			}
		}
		return true
	}
	for _, label := range strings.Split(s, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, c := range label {
			if !isAlnum(c) && c != '-' {
				return false
			}
		}
	}
	return true
}

func isAlnum(c rune) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// NormalizeTags trims tags, drops empties, removes case-insensitive duplicates
// (first spelling wins) and sorts the result.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	if len(out) == 0 {
		return nil
	}
	return out
}

// SplitTags parses the stored comma-joined form.
func SplitTags(s string) []string {
	return NormalizeTags(strings.Split(s, ","))
}

// JoinTags renders tags in the stored comma-joined form.
func JoinTags(tags []string) string {
	return strings.Join(NormalizeTags(tags), ",")
}

// HasTag reports whether r carries tag, ignoring case.
func (r ServerRecord) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

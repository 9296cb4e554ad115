// Package stream groups the media fragments extracted from a recording archive into logical streams.
package stream

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/alanbriolat/connect-archiver/generic"
)

const (
	// RoleScreenshare is the primary visual stream; a recording cannot be rebuilt without it.
	RoleScreenshare = "screenshare"
	// RoleCameraVoip carries camera and voice. When absent, audio is taken from RoleScreenshare.
	RoleCameraVoip = "cameravoip"

	fragmentExtension = ".flv"
)

var ErrMissingStream = errors.New("required stream missing")

var rolePattern = regexp.MustCompile(`^[A-Za-z0-9]+`)

// Groups maps a lower-case role to the absolute paths of its fragments, in playback order.
type Groups map[string][]string

// Require returns the fragments for role, or ErrMissingStream.
func (g Groups) Require(role string) ([]string, error) {
	files, ok := g[role]
	if !ok || len(files) == 0 {
		return nil, fmt.Errorf("%w: %s (found %v)", ErrMissingStream, role, g.Roles())
	}
	return files, nil
}

// Get returns the fragments for role if there are any.
func (g Groups) Get(role string) generic.Option[[]string] {
	files := g[role]
	return generic.SomeIf(files, len(files) > 0)
}

// Roles returns the role names in sorted order.
func (g Groups) Roles() []string {
	roles := make([]string, 0, len(g))
	for role := range g {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// Role derives the role key of a fragment file name: its leading alphanumeric run, lower-cased. The second return
// value is false when there is no such run.
func Role(name string) (string, bool) {
	m := rolePattern.FindString(name)
	if m == "" {
		return "", false
	}
	return strings.ToLower(m), true
}

// Sequence is the integer after the last "_" in the file name's stem, or 0 if there isn't one.
func Sequence(name string) int {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	i := strings.LastIndex(stem, "_")
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(stem[i+1:])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Classify groups the fragment files directly inside dir by role. Subdirectories and files that aren't fragments
// are ignored.
func Classify(dir string, logger *zap.Logger) (Groups, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("stream").Sugar()

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list fragments: %w", err)
	}

	groups := make(Groups)
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !strings.EqualFold(filepath.Ext(name), fragmentExtension) {
			continue
		}
		role, ok := Role(name)
		if !ok {
			log.Debugf("ignoring fragment with no role: %s", name)
			continue
		}
		groups[role] = append(groups[role], filepath.Join(absDir, name))
	}
	for _, files := range groups {
		sort.SliceStable(files, func(i, j int) bool {
			return Sequence(filepath.Base(files[i])) < Sequence(filepath.Base(files[j]))
		})
	}

	for _, role := range groups.Roles() {
		log.Infof("Found %d %s files", len(groups[role]), role)
	}
	if _, ok := groups[RoleCameraVoip]; !ok {
		log.Infof("No %s stream, audio will be taken from %s", RoleCameraVoip, RoleScreenshare)
	}
	return groups, nil
}

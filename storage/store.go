/*
 * MailHook - Copyright (C) 2022 Zane van Iperen.
 *    Contact: zane@zanevaniperen.com
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 2, and only
 * version 2 as published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program; if not, write to the Free Software
 * Foundation, Inc., 59 Temple Place, Suite 330, Boston, MA  02111-1307  USA
 */

// Package storage writes attachment payloads below a fixed root directory.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

var ErrInvalidPath = errors.New("invalid storage path")

const (
	dirMode  os.FileMode = 0755
	fileMode os.FileMode = 0644
)

type Store struct {
	fs   afero.Fs
	root string
}

func NewStore(fs afero.Fs, root string) *Store {
	return &Store{fs: fs, root: filepath.Clean(root)}
}

func NewOSStore(root string) *Store {
	return NewStore(afero.NewOsFs(), root)
}

func (s *Store) Root() string {
	return s.root
}

// Dir resolves a directory relative to the root. Empty segments are skipped,
// anything that could step outside the root is rejected.
func (s *Store) Dir(segments []string) (string, error) {
	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, s.root)

	for _, seg := range segments {
		if seg == "" {
			continue
		}

		if err := validateSegment(seg); err != nil {
			return "", err
		}

		parts = append(parts, seg)
	}

	return filepath.Join(parts...), nil
}

func (s *Store) EnsureDirectory(segments []string) (string, error) {
	dir, err := s.Dir(segments)
	if err != nil {
		return "", err
	}

	if err := s.fs.MkdirAll(dir, dirMode); err != nil {
		return "", err
	}

	return dir, nil
}

// WriteFile creates the directory if needed and replaces any existing file.
func (s *Store) WriteFile(segments []string, name string, data []byte) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty file name", ErrInvalidPath)
	}

	if err := validateSegment(name); err != nil {
		return "", err
	}

	dir, err := s.EnsureDirectory(segments)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, name)
	if err := afero.WriteFile(s.fs, path, data, fileMode); err != nil {
		return "", err
	}

	return path, nil
}

func validateSegment(seg string) error {
	if seg == "." || seg == ".." || strings.ContainsAny(seg, `/\`) || strings.ContainsRune(seg, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, seg)
	}
	return nil
}

// Package users holds the static credential table behind the login form.
package users

import (
	"crypto/subtle"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Directory maps usernames to the passwords of every row naming them. It is
// never modified after Load.
type Directory struct {
	passwords map[string][]string
}

// LoadFile opens path and calls Load.
func LoadFile(path string) (*Directory, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open users file: %w", err)
	}
	defer file.Close()
	return Load(file)
}

// Load reads a username,password CSV. Columns are located by header name and
// default to the first two.
func Load(r io.Reader) (*Directory, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("could not read header row: %w", err)
	}
	userCol, passCol := 0, 1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "username", "user":
			userCol = i
		case "password":
			passCol = i
		}
	}

	d := &Directory{passwords: make(map[string][]string)}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("could not read users file: %w", err)
		}
		if userCol >= len(record) || passCol >= len(record) {
			continue
		}
		user := record[userCol]
		d.passwords[user] = append(d.passwords[user], record[passCol])
	}
	return d, nil
}

// Len returns the number of known users.
func (d *Directory) Len() int { return len(d.passwords) }

// Authenticate succeeds only when both values match a row exactly. Every row
// for the user is compared.
func (d *Directory) Authenticate(username, password string) error {
	match := 0
	for _, want := range d.passwords[username] {
		match |= subtle.ConstantTimeCompare([]byte(want), []byte(password))
	}
	if match != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

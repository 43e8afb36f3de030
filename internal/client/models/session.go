// Package models holds the CLI's local records.
package models

import "time"

// StoredSession is the signed-in state the CLI keeps between runs.
type StoredSession struct {
	Email        string
	AccessToken  string
	RefreshToken string
	UpdatedAt    time.Time
}

// Package screenscraper adapts the generic fetch pipeline to the
// ScreenScraper.fr API: endpoint URL construction, its HTTP status
// conventions, media selection, and server-advertised thread limits.
package screenscraper

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
)

const (
	gameInfoURL      = "https://api.screenscraper.fr/api2/jeuInfos.php"
	userInfoURL      = "https://api.screenscraper.fr/api2/ssuserInfos.php"
	infraInfoURL     = "https://api.screenscraper.fr/api2/ssinfraInfos.php"
	mediaDownloadURL = "https://api.screenscraper.fr/api2/mediaJeu.php"

	// softName identifies this client to the API.
	softName = "artie"
)

// Credentials holds the four-part ScreenScraper authentication set. The
// developer fields are stored base64-encoded and decoded at URL build
// time; the user fields are plain.
type Credentials struct {
	DevID       string
	DevPassword string
	Username    string
	Password    string
}

// baseParams builds the authentication and output parameters shared by
// every endpoint.
func (c Credentials) baseParams() (url.Values, error) {
	devID, err := base64.StdEncoding.DecodeString(c.DevID)
	if err != nil {
		return nil, fmt.Errorf("decoding dev id: %w", err)
	}
	devPassword, err := base64.StdEncoding.DecodeString(c.DevPassword)
	if err != nil {
		return nil, fmt.Errorf("decoding dev password: %w", err)
	}

	params := url.Values{}
	params.Set("devid", string(devID))
	params.Set("devpassword", string(devPassword))
	params.Set("softname", softName)
	params.Set("output", "json")
	params.Set("ssid", c.Username)
	params.Set("sspassword", c.Password)
	return params, nil
}

// ROMQuery identifies a ROM for a game lookup.
type ROMQuery struct {
	SystemID string
	Type     string // "rom", "iso", or "folder"
	Name     string // filename as stored on disk
	Size     int64  // bytes
}

// GameInfoURL builds the jeuInfos lookup URL for a ROM.
func GameInfoURL(creds Credentials, q ROMQuery) (string, error) {
	if q.SystemID == "" {
		return "", fmt.Errorf("system id required")
	}
	if q.Name == "" {
		return "", fmt.Errorf("rom name required")
	}
	params, err := creds.baseParams()
	if err != nil {
		return "", err
	}
	params.Set("systemeid", q.SystemID)
	params.Set("romtype", q.Type)
	params.Set("romnom", q.Name)
	params.Set("romtaille", strconv.FormatInt(q.Size, 10))
	return gameInfoURL + "?" + params.Encode(), nil
}

// UserInfoURL builds the ssuserInfos URL.
func UserInfoURL(creds Credentials) (string, error) {
	params, err := creds.baseParams()
	if err != nil {
		return "", err
	}
	return userInfoURL + "?" + params.Encode(), nil
}

// InfraInfoURL builds the ssinfraInfos URL.
func InfraInfoURL(creds Credentials) (string, error) {
	params, err := creds.baseParams()
	if err != nil {
		return "", err
	}
	return infraInfoURL + "?" + params.Encode(), nil
}

// MediaDownloadURL builds the mediaJeu download URL for a game's media
// item.
func MediaDownloadURL(creds Credentials, systemID, gameID, mediaType string) (string, error) {
	params, err := creds.baseParams()
	if err != nil {
		return "", err
	}
	params.Set("systemeid", systemID)
	params.Set("jeuid", gameID)
	params.Set("media", mediaType)
	return mediaDownloadURL + "?" + params.Encode(), nil
}

// WithDimensions appends server-side resize parameters to a media URL.
func WithDimensions(mediaURL string, width, height int) (string, error) {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return "", fmt.Errorf("parsing media url: %w", err)
	}
	q := u.Query()
	q.Set("maxwidth", strconv.Itoa(width))
	q.Set("maxheight", strconv.Itoa(height))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

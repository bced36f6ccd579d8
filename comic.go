package comics

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Comic represents a single archived comic. Comics are immutable once
// synchronized and keyed by Num alone.
type Comic struct {
	Num        int    `json:"num"`
	SafeTitle  string `json:"safe_title"`
	Title      string `json:"title,omitempty"`
	Img        string `json:"img"`
	Link       string `json:"link"`
	Alt        string `json:"alt"`
	Year       int    `json:"year"`
	Month      int    `json:"month"`
	Day        int    `json:"day"`
	Transcript string `json:"transcript,omitempty"`
	News       string `json:"news,omitempty"`
}

// Validate returns an error if the comic contains invalid fields.
func (c *Comic) Validate() error {
	if c.Num <= 0 {
		return Errorf(EINVALID, "comic number must be positive, got %d", c.Num)
	}
	if c.SafeTitle == "" && c.Title == "" {
		return Errorf(EINVALID, "comic #%d title required", c.Num)
	}
	if c.Img == "" {
		return Errorf(EINVALID, "comic #%d image required", c.Num)
	}
	return nil
}

// DisplayTitle returns the plain-text title, falling back to Title.
func (c *Comic) DisplayTitle() string {
	if c.SafeTitle != "" {
		return c.SafeTitle
	}
	return c.Title
}

// Date returns the publication date, or the zero time if it is unset.
func (c *Comic) Date() time.Time {
	if c.Year == 0 || c.Month == 0 || c.Day == 0 {
		return time.Time{}
	}
	return time.Date(c.Year, time.Month(c.Month), c.Day, 0, 0, 0, 0, time.UTC)
}

// URL returns the canonical link for the comic. Comics without an explicit
// link are addressed as <base>/<num>/.
func (c *Comic) URL(base string) string {
	if c.Link != "" {
		return c.Link
	}
	return fmt.Sprintf("%s/%d/", strings.TrimSuffix(base, "/"), c.Num)
}

// comicJSON mirrors the remote record shape, where the date parts are strings.
type comicJSON struct {
	Num        int     `json:"num"`
	SafeTitle  string  `json:"safe_title"`
	Title      string  `json:"title,omitempty"`
	Img        string  `json:"img"`
	Link       string  `json:"link"`
	Alt        string  `json:"alt"`
	Year       flexInt `json:"year"`
	Month      flexInt `json:"month"`
	Day        flexInt `json:"day"`
	Transcript string  `json:"transcript,omitempty"`
	News       string  `json:"news,omitempty"`
}

// MarshalJSON encodes the comic in the remote record shape.
func (c Comic) MarshalJSON() ([]byte, error) {
	return json.Marshal(comicJSON{
		Num:        c.Num,
		SafeTitle:  c.SafeTitle,
		Title:      c.Title,
		Img:        c.Img,
		Link:       c.Link,
		Alt:        c.Alt,
		Year:       flexInt(c.Year),
		Month:      flexInt(c.Month),
		Day:        flexInt(c.Day),
		Transcript: c.Transcript,
		News:       c.News,
	})
}

// UnmarshalJSON decodes a comic whose date parts may be strings or numbers.
func (c *Comic) UnmarshalJSON(data []byte) error {
	var v comicJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = Comic{
		Num:        v.Num,
		SafeTitle:  v.SafeTitle,
		Title:      v.Title,
		Img:        v.Img,
		Link:       v.Link,
		Alt:        v.Alt,
		Year:       int(v.Year),
		Month:      int(v.Month),
		Day:        int(v.Day),
		Transcript: v.Transcript,
		News:       v.News,
	}
	return nil
}

// flexInt is an integer that is written as a decimal string and read from
// either a string or a number.
type flexInt int

func (n flexInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.Itoa(int(n)))
}

func (n *flexInt) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("invalid integer %q: %w", s, err)
		}
		*n = flexInt(v)
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = flexInt(v)
	return nil
}

// Source represents the remote archive that is the source of truth for the
// catalog.
type Source interface {
	// Latest returns the number of the most recent comic.
	Latest(ctx context.Context) (int, error)

	// FetchComic retrieves a single comic by number.
	// Returns ENOTFOUND if the archive has no comic with that number.
	FetchComic(ctx context.Context, num int) (*Comic, error)
}

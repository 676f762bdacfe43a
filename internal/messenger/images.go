package messenger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Image names one of the sphinx's portraits.
type Image string

const (
	// ImageWelcome greets a player at the start of a game.
	ImageWelcome Image = "welcome"
	// ImageVictory is shown when the player wins. The sphinx is sad.
	ImageVictory Image = "victory"
	// ImageDefeat is shown when the player loses. The sphinx is delighted.
	ImageDefeat Image = "defeat"
)

var imageFiles = map[Image]string{
	ImageWelcome: "happySphinx.png",
	ImageVictory: "SadSphinx.png",
	ImageDefeat:  "SuperHappySphinx.png",
}

// ErrMissingImage is returned when a required image asset is absent.
var ErrMissingImage = errors.New("missing image asset")

// ImageSet resolves images to files in a directory.
type ImageSet struct {
	Dir string
}

// FileName returns the asset file name for img.
func FileName(img Image) (string, bool) {
	name, ok := imageFiles[img]
	return name, ok
}

// Path returns the file path of img.
func (s ImageSet) Path(img Image) (string, error) {
	name, ok := FileName(img)
	if !ok {
		return "", fmt.Errorf("unknown image %q", img)
	}
	return filepath.Join(s.Dir, name), nil
}

// Validate checks that every portrait exists as a regular file.
func (s ImageSet) Validate() error {
	var errs []error
	for _, img := range []Image{ImageWelcome, ImageVictory, ImageDefeat} {
		path, _ := s.Path(img)
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingImage, path))
		}
	}
	return errors.Join(errs...)
}

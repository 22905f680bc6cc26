package extract

import (
	"fmt"

	"github.com/lu4p/cat"
)

// extractWithCat reads OpenDocument text and RTF.
func extractWithCat(content []byte) (string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("extract document: %w", err)
	}
	return text, nil
}

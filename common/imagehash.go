package common

import (
	"bytes"
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
)

// ImageHashRsp is a struct representing the results of an image hashing
// operation.
type ImageHashRsp struct {
	// String label describing the image hashing procedure used.
	Approach string
	// The hexidecimal hash of an image.
	Hash string
}

// ImageHashes generates perceptual hashes for an image body using the
// corona10/goimagehash package. Hashes are optional report enrichment so a
// body the image decoder rejects is reported as an error by the caller, not
// a batch failure.
func ImageHashes(body []byte) ([]*ImageHashRsp, error) {

	im, _, err := image.Decode(bytes.NewReader(body))

	if err != nil {
		return nil, fmt.Errorf("Failed to decode image, %w", err)
	}

	hashes := make([]*ImageHashRsp, 0)

	avg, err := goimagehash.AverageHash(im)

	if err != nil {
		return nil, fmt.Errorf("Failed to derive average hash, %w", err)
	}

	hashes = append(hashes, &ImageHashRsp{Approach: "avg", Hash: avg.ToString()})

	diff, err := goimagehash.DifferenceHash(im)

	if err != nil {
		return nil, fmt.Errorf("Failed to derive difference hash, %w", err)
	}

	hashes = append(hashes, &ImageHashRsp{Approach: "diff", Hash: diff.ToString()})

	return hashes, nil
}

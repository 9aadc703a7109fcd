package metadata

import "github.com/ThreeDotsLabs/watermill/message"

// FromWatermill copies Watermill message metadata.
func FromWatermill(md message.Metadata) Metadata {
	result := make(Metadata, len(md))
	for k, v := range md {
		result[k] = v
	}
	return result
}

// ToWatermill copies metadata into a Watermill map.
func ToWatermill(md Metadata) message.Metadata {
	wm := make(message.Metadata, len(md))
	for k, v := range md {
		wm[k] = v
	}
	return wm
}

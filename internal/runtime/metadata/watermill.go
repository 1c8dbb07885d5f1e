package metadata

import "github.com/ThreeDotsLabs/watermill/message"

// FromWatermill converts Watermill metadata into interactor metadata.
func FromWatermill(md message.Metadata) Metadata {
	if len(md) == 0 {
		return Metadata{}
	}

	result := make(Metadata, len(md))
	for k, v := range md {
		result[k] = v
	}
	return result
}

// ToWatermill converts interactor metadata into a Watermill map.
func ToWatermill(metadata Metadata) message.Metadata {
	if len(metadata) == 0 {
		return message.Metadata{}
	}

	wm := make(message.Metadata, len(metadata))
	for k, v := range metadata {
		wm[k] = v
	}
	return wm
}

// Of reads the metadata of msg, tolerating a nil message.
func Of(msg *message.Message) Metadata {
	if msg == nil {
		return Metadata{}
	}
	return FromWatermill(msg.Metadata)
}

// Apply copies every entry onto msg, overwriting existing keys.
func Apply(msg *message.Message, md Metadata) {
	if msg.Metadata == nil {
		msg.Metadata = message.Metadata{}
	}
	for k, v := range md {
		msg.Metadata.Set(k, v)
	}
}

// Package format turns canonical items into platform delivery payloads.
package format

import "relaybot/internal/model"

// HardDefaults is the bottom layer of the settings cascade.
func HardDefaults() model.FormatSettings {
	return model.FormatSettings{
		Notify:       model.NotifyOn,
		Media:        model.MediaEnabled,
		Author:       model.AuthorShow,
		Attribution:  model.AttrTitledLink,
		Preview:      model.PreviewOff,
		CaptionLimit: 0,
	}
}

// Resolve merges the three settings layers field by field: hard defaults,
// then channel defaults, then per-source overrides, later layers winning.
// Pure and total: every field of the result is always set, substituting the
// hard default for any field unset at every layer.
func Resolve(hard model.FormatSettings, layers ...*model.FormatOverride) model.FormatSettings {
	out := hard
	for _, l := range layers {
		if l == nil {
			continue
		}
		if l.Notify != nil {
			out.Notify = *l.Notify
		}
		if l.Media != nil {
			out.Media = *l.Media
		}
		if l.Author != nil {
			out.Author = *l.Author
		}
		if l.Attribution != nil {
			out.Attribution = *l.Attribution
		}
		if l.Preview != nil {
			out.Preview = *l.Preview
		}
		if l.CaptionLimit != nil {
			out.CaptionLimit = *l.CaptionLimit
		}
	}
	return out
}

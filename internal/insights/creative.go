package insights

import "encoding/json"

// Creative is the ad-creative detail fetched during enrichment.
type Creative struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	ThumbnailURL string `json:"thumbnail_url"`
	ImageURL     string `json:"image_url"`
	VideoID      string `json:"video_id"`
}

type wireCreativeEnvelope struct {
	ID       string     `json:"id"`
	Creative *Creative  `json:"creative"`
	Error    *wireError `json:"error"`
}

// ParseCreative decodes a single-ad creative lookup response.
func ParseCreative(status int, body []byte) (*Creative, error) {
	var envelope wireCreativeEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, classifyResponse(status, nil, 0)
	}
	if envelope.Error != nil || status >= 400 {
		return nil, classifyResponse(status, envelope.Error, 0)
	}
	if envelope.Creative == nil {
		return &Creative{ID: envelope.ID}, nil
	}
	if envelope.Creative.ID == "" {
		envelope.Creative.ID = envelope.ID
	}
	return envelope.Creative, nil
}

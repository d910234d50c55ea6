// Package speech renders reply text to playable audio via the Google Cloud
// Text-to-Speech REST API.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"dispatchline/internal/domain"
)

// Synthesizer converts text to a playable audio resource URL. callSID and
// turnSeq scope the written resource to one call turn.
type Synthesizer interface {
	Synthesize(ctx context.Context, callSID string, turnSeq int, text string) (string, error)
}

// VoiceProfile selects a synthesis voice and its delivery tuning.
type VoiceProfile struct {
	LanguageCode string  `json:"languageCode"`
	Name         string  `json:"name"`
	SpeakingRate float64 `json:"-"`
	Pitch        float64 `json:"-"`
}

// PrimaryVoice is tuned for clarity on a phone line.
var PrimaryVoice = VoiceProfile{
	LanguageCode: "en-US",
	Name:         "en-US-Wavenet-B",
	SpeakingRate: 1.2,
	Pitch:        2.0,
}

// FallbackVoice is the retry profile: different voice, faster rate, no pitch
// adjustment.
var FallbackVoice = VoiceProfile{
	LanguageCode: "en-US",
	Name:         "en-US-Wavenet-D",
	SpeakingRate: 1.8,
}

// Verify interface compliance at compile time.
var _ Synthesizer = (*GoogleClient)(nil)

// GoogleClient implements Synthesizer against the Google TTS REST endpoint.
type GoogleClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	primary    VoiceProfile
	fallback   VoiceProfile
	store      *AudioStore
	logger     *slog.Logger
}

// Config configures the Google TTS client.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Primary    *VoiceProfile
	Fallback   *VoiceProfile
	Store      *AudioStore
	Logger     *slog.Logger
}

// NewGoogleClient creates a Google TTS synthesizer.
func NewGoogleClient(cfg Config) (*GoogleClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("google TTS API key is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("audio store is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://texttospeech.googleapis.com/v1"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 15 * time.Second,
		}
	}

	primary := PrimaryVoice
	if cfg.Primary != nil {
		primary = *cfg.Primary
	}
	fallback := FallbackVoice
	if cfg.Fallback != nil {
		fallback = *cfg.Fallback
	}

	return &GoogleClient{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		primary:    primary,
		fallback:   fallback,
		store:      cfg.Store,
		logger:     cfg.Logger,
	}, nil
}

// Synthesize renders text with the primary voice, retrying exactly once with
// the fallback voice on any failure. Both attempts failing surfaces
// domain.ErrSynthesis; the caller degrades to the provider's built-in voice.
func (c *GoogleClient) Synthesize(ctx context.Context, callSID string, turnSeq int, text string) (string, error) {
	audio, err := c.synthesizeOnce(ctx, text, c.primary)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("primary voice failed, retrying with fallback",
				"error", err,
				"call_sid", callSID,
				"voice", c.primary.Name,
			)
		}
		audio, err = c.synthesizeOnce(ctx, text, c.fallback)
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrSynthesis, err)
		}
	}

	url, err := c.store.Save(callSID, turnSeq, audio)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSynthesis, err)
	}
	return url, nil
}

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice       VoiceProfile `json:"voice"`
	AudioConfig struct {
		AudioEncoding string  `json:"audioEncoding"`
		SpeakingRate  float64 `json:"speakingRate,omitempty"`
		Pitch         float64 `json:"pitch,omitempty"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// synthesizeOnce performs a single REST call with one voice profile.
func (c *GoogleClient) synthesizeOnce(ctx context.Context, text string, voice VoiceProfile) ([]byte, error) {
	var reqBody synthesizeRequest
	reqBody.Input.Text = text
	reqBody.Voice = voice
	reqBody.AudioConfig.AudioEncoding = "MP3"
	reqBody.AudioConfig.SpeakingRate = voice.SpeakingRate
	reqBody.AudioConfig.Pitch = voice.Pitch

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/text:synthesize?key=%s", c.baseURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("tts error %d: %s", resp.StatusCode, string(body))
	}

	var result synthesizeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	audio, err := base64.StdEncoding.DecodeString(result.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decode audio content: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio content")
	}
	return audio, nil
}

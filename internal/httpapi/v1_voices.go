package httpapi

import (
	"net/http"
)

// ElevenLabsVoice mirrors the upstream ElevenLabs voice shape field for
// field so existing ElevenLabs clients work against the gateway
// unmodified, per spec.md §6. Fields with no gateway-side equivalent
// (fine_tuning, sharing, …) are fixed zero values, preserved verbatim
// for client compatibility rather than omitted.
type ElevenLabsVoice struct {
	VoiceID                 string        `json:"voice_id"`
	Name                    string        `json:"name"`
	Samples                 any           `json:"samples"`
	Category                string        `json:"category"`
	FineTuning              fineTuning    `json:"fine_tuning"`
	Labels                  voiceLabels   `json:"labels"`
	Description             string        `json:"description"`
	PreviewURL              any           `json:"preview_url"`
	AvailableForTiers       []string      `json:"available_for_tiers"`
	Settings                voiceSettings `json:"settings"`
	Sharing                 any           `json:"sharing"`
	HighQualityBaseModelIDs []string      `json:"high_quality_base_model_ids"`
}

type fineTuning struct {
	IsAllowedToFineTune         bool     `json:"is_allowed_to_fine_tune"`
	FineTuningRequested         bool     `json:"finetuning_requested"`
	FineTuningState             string   `json:"finetuning_state"`
	VerificationFailures        []string `json:"verification_failures"`
	VerificationAttemptsCount   int      `json:"verification_attempts_count"`
	ManualVerificationRequested bool     `json:"manual_verification_requested"`
}

type voiceLabels struct {
	Engine   string `json:"engine"`
	Language string `json:"language"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// handleListVoicesV1 reports every voice available to the authenticated
// key across every enabled, reachable provider. A provider that fails to
// construct (missing credentials, disabled for this key) is skipped
// rather than failing the whole listing.
func (s *Server) handleListVoicesV1(w http.ResponseWriter, r *http.Request) {
	key, ok := s.authenticate(w, r, false)
	if !ok {
		return
	}

	var out []ElevenLabsVoice
	for _, provider := range s.Pipe.ProviderNames() {
		adapter, err := s.Pipe.ResolveProviderAdapter(r.Context(), provider, key)
		if err != nil {
			continue
		}
		voices, err := adapter.ListVoices(r.Context())
		if err != nil {
			continue
		}
		for _, v := range voices {
			facadeID := provider + "-" + v.ID
			if len(key.AllowedVoices) > 0 && !contains(key.AllowedVoices, facadeID) {
				continue
			}
			language := ""
			if len(v.Languages) > 0 {
				language = v.Languages[0]
			}
			out = append(out, ElevenLabsVoice{
				VoiceID:           facadeID,
				Name:              v.Name,
				Samples:           nil,
				Category:          "premade",
				FineTuning:        fineTuning{FineTuningState: "not_started"},
				Labels:            voiceLabels{Engine: provider, Language: language},
				AvailableForTiers: []string{},
				Settings: voiceSettings{
					Stability:       0.5,
					SimilarityBoost: 0.75,
					Style:           0,
					UseSpeakerBoost: true,
				},
				Sharing:                 nil,
				HighQualityBaseModelIDs: []string{},
			})
		}
	}
	if out == nil {
		out = []ElevenLabsVoice{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"voices": out})
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// handleUser reports the authenticated key's identity and usage
// counters, mirroring the shape of ElevenLabs's GET /v1/user.
func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	key, ok := s.authenticate(w, r, false)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subscription": map[string]any{
			"tier":              "gateway",
			"character_count":   key.RequestCount,
			"character_limit":   -1,
			"can_extend_limit":  false,
			"next_character_reset_unix": nil,
		},
		"is_new_user": key.RequestCount == 0,
		"xi_api_key":  key.Suffix,
	})
}

// handleModels reports the set of façade "model" identifiers the gateway
// advertises, one per provider, since the gateway has no native model
// concept of its own.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, false); !ok {
		return
	}
	var models []map[string]any
	for _, provider := range s.Pipe.ProviderNames() {
		models = append(models, map[string]any{
			"model_id":    provider,
			"name":        provider,
			"can_do_text_to_speech": true,
		})
	}
	writeJSON(w, http.StatusOK, models)
}

package ai

import "Muse/core"

const (
	submitPath = "/produce/do/text2img"
	fetchPath  = "/produce/get/fetchResult"
)

// Text2ImgRequest is the provider's submission schema
type Text2ImgRequest struct {
	ApiKey            string  `json:"apiKey"`
	ModelId           string  `json:"model_id"`
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	BatchSize         int     `json:"batch_size"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	Sampler           string  `json:"sampler"`
	Seed              int64   `json:"seed"`
	CfgScale          float64 `json:"cfg_scale"`
}

type SubmitResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data *struct {
		FetchKey string `json:"fetchKey"`
	} `json:"data"`
}

type FetchResultResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data *struct {
		PicUrl string `json:"picUrl"`
	} `json:"data"`
}

// NewText2ImgRequest fills render parameters from config around the user's request
func NewText2ImgRequest(conf *core.GenerationConfig, req core.GenerationRequest) *Text2ImgRequest {
	return &Text2ImgRequest{
		ApiKey:            conf.ApiKey,
		ModelId:           req.ModelId,
		Prompt:            req.PositivePrompt,
		NegativePrompt:    req.NegativePrompt,
		Width:             conf.Width,
		Height:            conf.Height,
		BatchSize:         conf.BatchSize,
		NumInferenceSteps: conf.Steps,
		Sampler:           conf.Sampler,
		Seed:              conf.Seed,
		CfgScale:          conf.CfgScale,
	}
}

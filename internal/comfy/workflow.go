package comfy

// Node is one entry of a job graph, keyed by node id in Workflow.
type Node struct {
	Inputs    map[string]interface{} `json:"inputs"`
	ClassType string                 `json:"class_type"`
}

// Workflow is the job graph the server executes.
type Workflow map[string]Node

// Node ids of the text-to-image graph.
const (
	NodePositive  = "6"
	NodeDecode    = "8"
	NodeSave      = "9"
	NodeLatent    = "27"
	NodeModel     = "30"
	NodeSampler   = "31"
	NodeNegative  = "33"
	NodeGuidance  = "35"
	NodeReference = "40"
	NodeIDLoader  = "41"
	NodeIDApply   = "42"
	NodeFaceModel = "43"
)

// Params are the model settings shared by every job in a run.
type Params struct {
	Checkpoint string  `yaml:"checkpoint"`
	Steps      int     `yaml:"steps"`
	CFG        float64 `yaml:"cfg"`
	Sampler    string  `yaml:"sampler"`
	Scheduler  string  `yaml:"scheduler"`
	Guidance   float64 `yaml:"guidance"`
	IDModel    string  `yaml:"identity_model"`
	FaceDevice string  `yaml:"face_device"`
}

// DefaultParams match the Flux dev fp8 checkpoint.
func DefaultParams() Params {
	return Params{
		Checkpoint: "flux1-dev-fp8.safetensors",
		Steps:      20,
		CFG:        1,
		Sampler:    "euler",
		Scheduler:  "simple",
		Guidance:   3.5,
		IDModel:    "pulid_flux_v0.9.1.safetensors",
		FaceDevice: "CPU",
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Checkpoint == "" {
		p.Checkpoint = d.Checkpoint
	}
	if p.Steps <= 0 {
		p.Steps = d.Steps
	}
	if p.CFG <= 0 {
		p.CFG = d.CFG
	}
	if p.Sampler == "" {
		p.Sampler = d.Sampler
	}
	if p.Scheduler == "" {
		p.Scheduler = d.Scheduler
	}
	if p.Guidance <= 0 {
		p.Guidance = d.Guidance
	}
	if p.IDModel == "" {
		p.IDModel = d.IDModel
	}
	if p.FaceDevice == "" {
		p.FaceDevice = d.FaceDevice
	}
	return p
}

// Job is one submission: a prompt pair rendered batch times at one seed.
type Job struct {
	Positive  string
	Negative  string
	Prefix    string
	Width     int
	Height    int
	Seed      int64
	BatchSize int
	// Reference is the server-side name of an uploaded identity image.
	// When set the graph gets the identity nodes and Weight applies.
	Reference string
	Weight    float64
}

func link(node string, slot int) []interface{} {
	return []interface{}{node, slot}
}

// Build returns a fresh graph for job. Nothing is shared between calls.
func Build(job Job, params Params) Workflow {
	p := params.withDefaults()
	if job.Width <= 0 {
		job.Width = 896
	}
	if job.Height <= 0 {
		job.Height = 1152
	}
	if job.BatchSize <= 0 {
		job.BatchSize = 1
	}

	w := Workflow{
		NodePositive: {
			ClassType: "CLIPTextEncode",
			Inputs:    map[string]interface{}{"text": job.Positive, "clip": link(NodeModel, 1)},
		},
		NodeDecode: {
			ClassType: "VAEDecode",
			Inputs:    map[string]interface{}{"samples": link(NodeSampler, 0), "vae": link(NodeModel, 2)},
		},
		NodeSave: {
			ClassType: "SaveImage",
			Inputs:    map[string]interface{}{"filename_prefix": job.Prefix, "images": link(NodeDecode, 0)},
		},
		NodeLatent: {
			ClassType: "EmptySD3LatentImage",
			Inputs:    map[string]interface{}{"width": job.Width, "height": job.Height, "batch_size": job.BatchSize},
		},
		NodeModel: {
			ClassType: "CheckpointLoaderSimple",
			Inputs:    map[string]interface{}{"ckpt_name": p.Checkpoint},
		},
		NodeSampler: {
			ClassType: "KSampler",
			Inputs: map[string]interface{}{
				"seed":         job.Seed,
				"steps":        p.Steps,
				"cfg":          p.CFG,
				"sampler_name": p.Sampler,
				"scheduler":    p.Scheduler,
				"denoise":      1,
				"model":        link(NodeModel, 0),
				"positive":     link(NodeGuidance, 0),
				"negative":     link(NodeNegative, 0),
				"latent_image": link(NodeLatent, 0),
			},
		},
		NodeNegative: {
			ClassType: "CLIPTextEncode",
			Inputs:    map[string]interface{}{"text": job.Negative, "clip": link(NodeModel, 1)},
		},
		NodeGuidance: {
			ClassType: "FluxGuidance",
			Inputs:    map[string]interface{}{"guidance": p.Guidance, "conditioning": link(NodePositive, 0)},
		},
	}

	if job.Reference != "" {
		addIdentity(w, job, p)
	}
	return w
}

// addIdentity routes the sampler's model through the identity adapter fed
// by the reference image.
func addIdentity(w Workflow, job Job, p Params) {
	weight := job.Weight
	if weight <= 0 {
		weight = 0.85
	}

	w[NodeReference] = Node{
		ClassType: "LoadImage",
		Inputs:    map[string]interface{}{"image": job.Reference, "upload": "image"},
	}
	w[NodeIDLoader] = Node{
		ClassType: "PulidModelLoader",
		Inputs:    map[string]interface{}{"pulid_file": p.IDModel},
	}
	w[NodeIDApply] = Node{
		ClassType: "ApplyPulid",
		Inputs: map[string]interface{}{
			"weight":        weight,
			"start_at":      0.0,
			"end_at":        1.0,
			"model":         link(NodeModel, 0),
			"pulid":         link(NodeIDLoader, 0),
			"eva_clip":      link(NodeIDLoader, 1),
			"face_analysis": link(NodeFaceModel, 0),
			"image":         link(NodeReference, 0),
		},
	}
	w[NodeFaceModel] = Node{
		ClassType: "InsightFaceLoader",
		Inputs:    map[string]interface{}{"provider": p.FaceDevice},
	}
	w[NodeSampler].Inputs["model"] = link(NodeIDApply, 0)
}

package sim

// ClusterID identifies the statistically homogeneous patient subgroup a
// profile belongs to. Computed once per profile by the Assigner and immutable
// thereafter.
type ClusterID int

// NumVariables is the number of outcome variables a single run produces.
const NumVariables = 5

// VariableNames are the outcome column names, in table order. ICU stay is the
// derived sum of the three in-ICU stages; the remaining four are drawn.
var VariableNames = []string{"pre_vam", "vam", "post_vam", "icu_stay", "post_icu"}

// PatientProfile is the immutable per-patient input to the engine. Numeric
// bounds are validated by the caller (UI layer) before profiles reach the
// core; time fields are in hours.
type PatientProfile struct {
	Age                      int
	DiagnosisAdmission1      int
	DiagnosisAdmission2      int
	DiagnosisAdmission3      int
	DiagnosisAdmission4      int
	Apache                   int
	RespiratoryInsufficiency int
	ArtificialVentilation    int
	ICUStay                  float64 // expected ICU stay; upper bound for pre-VAM + VAM
	VAMTime                  float64 // expected ventilation time
	PreICUStay               float64 // stay before ICU admission
}

// FeatureVector returns the 11 clustering features in the fixed order the
// centroid table columns use.
func (p PatientProfile) FeatureVector() []float64 {
	return []float64{
		float64(p.Age),
		float64(p.DiagnosisAdmission1),
		float64(p.DiagnosisAdmission2),
		float64(p.DiagnosisAdmission3),
		float64(p.DiagnosisAdmission4),
		float64(p.Apache),
		float64(p.RespiratoryInsufficiency),
		float64(p.ArtificialVentilation),
		p.ICUStay,
		p.VAMTime,
		p.PreICUStay,
	}
}

// StageDurations is the outcome of one timeline run. All values are
// non-negative hours. VAM never exceeds the profile's ICU-stay bound.
type StageDurations struct {
	PreVAM  float64
	VAM     float64
	PostVAM float64
	ICUStay float64
	PostICU float64
}

// Values returns the durations in VariableNames order.
func (s StageDurations) Values() []float64 {
	return []float64{s.PreVAM, s.VAM, s.PostVAM, s.ICUStay, s.PostICU}
}

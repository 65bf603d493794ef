package intelligence

import (
	"fmt"
	"strings"
)

const systemInstruction = `You are an experienced automotive technician helping drivers understand vehicle problems.
Answer ONLY with a JSON object of this shape:
{"summary": string, "causes": [string], "urgency": "low"|"medium"|"high"|"critical",
 "confidence": number between 0 and 1, "recommendedSpecialization": string}
recommendedSpecialization is one lowercase word such as engine, electrical, brakes,
transmission, suspension, tyres, bodywork or aircon.
Use "critical" only when driving on is unsafe.`

func buildPrompt(in AnalysisInput) string {
	var sb strings.Builder
	if in.Vehicle != nil {
		v := in.Vehicle
		fmt.Fprintf(&sb, "Vehicle: %d %s %s", v.Year, v.Make, v.Model)
		if v.FuelType != "" {
			fmt.Fprintf(&sb, ", %s", v.FuelType)
		}
		if v.MileageKm > 0 {
			fmt.Fprintf(&sb, ", %d km", v.MileageKm)
		}
		sb.WriteString("\n")
	}
	if s := strings.TrimSpace(in.Symptoms); s != "" {
		fmt.Fprintf(&sb, "Reported symptoms: %s\n", s)
	}
	if t := strings.TrimSpace(in.Transcript); t != "" {
		fmt.Fprintf(&sb, "Voice note transcript: %s\n", t)
	}
	if n := len(in.ImageURLs); n > 0 {
		fmt.Fprintf(&sb, "%d photo(s) attached.\n", n)
	}
	if in.Language != "" && in.Language != "en" {
		fmt.Fprintf(&sb, "Write summary and causes in language code %q.\n", in.Language)
	}
	return sb.String()
}

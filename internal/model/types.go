package model

import ort "github.com/yalue/onnxruntime_go"

// Metadata describes the single input and output the matting network
// exposes. Dimensions of -1 are dynamic.
type Metadata struct {
	InputName   string  `json:"input_name"`
	OutputName  string  `json:"output_name"`
	InputShape  []int64 `json:"input_shape"`
	OutputShape []int64 `json:"output_shape"`
}

func newMetadata(inputs, outputs []ort.InputOutputInfo) (Metadata, error) {
	if len(inputs) != 1 {
		return Metadata{}, errorf("model declares %d inputs, want 1", len(inputs))
	}
	if len(outputs) < 1 {
		return Metadata{}, errorf("model declares no outputs")
	}
	in, out := inputs[0], outputs[0]
	if in.OrtValueType != ort.ONNXTypeTensor || out.OrtValueType != ort.ONNXTypeTensor {
		return Metadata{}, errorf("model input %q and output %q must be tensors", in.Name, out.Name)
	}
	if in.DataType != ort.TensorElementDataTypeFloat || out.DataType != ort.TensorElementDataTypeFloat {
		return Metadata{}, errorf("model input %q and output %q must be float32", in.Name, out.Name)
	}
	return Metadata{
		InputName:   in.Name,
		OutputName:  out.Name,
		InputShape:  append([]int64(nil), in.Dimensions...),
		OutputShape: append([]int64(nil), out.Dimensions...),
	}, nil
}

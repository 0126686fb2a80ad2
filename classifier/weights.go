package classifier

// builtinWeights are the shipped pre-trained logistic-regression vectors.
// Index 0 is the bias term; indices 1..32 follow the v1 feature schema order
// (see the features package). Regenerated by the offline training pipeline;
// do not edit by hand.
var builtinWeights = map[string][]float64{
	ModelDefault: {
		-6.8124,
		0.2314, 1.8743, -3.1128, 0.4417, -1.2245, 0.9663, 2.4418, 1.1372,
		0.6219, 2.9334, 7.2841, 6.1197, 1.4125, 3.8566, 2.1104, 1.7442,
		0.8816, 0.9247, 1.3381, 0.2217, -0.4432, 1.0871, -0.6645, 1.9253,
		4.1186, -0.3314, 0.5527, 0.7742, 1.6678, 0.4416, 5.2371, 0.3342,
	},
	ModelDeep: {
		-4.0873,
		0.3128, 1.4416, -2.2871, 0.5933, -0.8124, 0.7749, 1.8356, 0.9414,
		0.5563, 2.1189, 5.8214, 4.8823, 1.1258, 2.9417, 1.6645, 1.3327,
		0.7123, 0.8851, 1.0214, 0.3346, -0.2218, 0.8459, -0.4137, 1.5528,
		3.2247, -0.2256, 0.4418, 0.6631, 1.3349, 0.3785, 4.1163, 0.2817,
	},
	ModelCommand: {
		-5.2418,
		0.1812, 1.6625, -2.7743, 0.6248, -1.5519, 1.1137, 2.1842, 1.0226,
		0.7784, 2.5547, 6.4428, 5.3914, 1.8836, 3.2241, 2.4462, 1.9958,
		0.6647, 1.1123, 1.2275, 0.1129, -0.6684, 0.9932, -0.5518, 2.2214,
		3.7758, -0.4437, 0.6123, 0.8845, 1.4482, 0.5561, 4.8826, 0.1174,
	},
}

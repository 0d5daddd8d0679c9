// Package nn implements the emotion classifier: two stacked LSTM layers
// followed by a ReLU dense layer and a softmax output, with dropout after
// each hidden layer.
//
// Inputs are time-major sequences of shape (InputSteps, InputSize).
// Training uses sparse categorical cross-entropy, backpropagation through
// time and the Adam optimizer. Matrix products go through gonum.
//
// A trained Model is immutable from the point of view of inference:
// Forward never mutates weights and is safe for concurrent use. Only
// TrainStep changes the model.
package nn

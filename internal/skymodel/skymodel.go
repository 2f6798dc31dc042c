// skymodel.go sky-camera CNN model specific code
package skymodel

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	tflite "github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates/xnnpack"

	"github.com/mkallio/skycast-go/internal/conf"
	"github.com/mkallio/skycast-go/internal/errors"
	"github.com/mkallio/skycast-go/internal/logging"
)

// SkyModel wraps the pretrained TensorFlow Lite irradiance model. The model
// is loaded exactly once at process start and the reference is immutable for
// the process lifetime; every forecast depends on it, so a load failure is
// fatal to startup.
type SkyModel struct {
	interpreter *tflite.Interpreter
	settings    *conf.Settings
	inputSize   int
	mu          sync.Mutex
	log         *slog.Logger
}

// New loads the TFLite model from the configured path and prepares the
// interpreter. There is no hot-reloading and no concurrent model swap.
func New(settings *conf.Settings) (*SkyModel, error) {
	sm := &SkyModel{
		settings:  settings,
		inputSize: settings.Forecast.Model.InputSize,
		log:       logging.ForService("skymodel"),
	}

	if err := sm.initializeModel(); err != nil {
		return nil, errors.New(fmt.Errorf("skymodel: failed to initialize inference model: %w", err)).
			Component("skymodel").
			Category(errors.CategoryModelInit).
			Context("model_path", settings.Forecast.Model.Path).
			Build()
	}

	return sm, nil
}

// initializeModel loads and initializes the irradiance model.
func (sm *SkyModel) initializeModel() error {
	start := time.Now()

	modelData, err := os.ReadFile(sm.settings.Forecast.Model.Path)
	if err != nil {
		return errors.New(err).
			Component("skymodel").
			Category(errors.CategoryModelLoad).
			Context("model_path", sm.settings.Forecast.Model.Path).
			Build()
	}

	model := tflite.NewModel(modelData)
	if model == nil {
		return errors.Newf("cannot load TensorFlow Lite model").
			Component("skymodel").
			Category(errors.CategoryModelInit).
			Context("model_size_mb", len(modelData)/1024/1024).
			Context("use_xnnpack", sm.settings.Forecast.Model.UseXNNPACK).
			Build()
	}

	threads := sm.determineThreadCount(sm.settings.Forecast.Model.Threads)

	options := tflite.NewInterpreterOptions()

	// Try to use XNNPACK delegate if enabled in settings
	if sm.settings.Forecast.Model.UseXNNPACK {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, threads-1))}) //nolint:gosec // G115: thread count bounded by CPU count, safe conversion
		if delegate == nil {
			sm.log.Warn("Failed to create XNNPACK delegate, falling back to default CPU")
			options.SetNumThread(threads)
		} else {
			options.AddDelegate(delegate)
			options.SetNumThread(1)
		}
	} else {
		options.SetNumThread(threads)
	}

	options.SetErrorReporter(func(msg string, userData any) {
		logging.Error("TFLite error", "message", msg)
	}, nil)

	sm.interpreter = tflite.NewInterpreter(model, options)
	if sm.interpreter == nil {
		return fmt.Errorf("cannot create interpreter")
	}
	if status := sm.interpreter.AllocateTensors(); status != tflite.OK {
		return fmt.Errorf("tensor allocation failed")
	}

	// The model data is no longer needed, TFLite keeps its own internal copy
	runtime.GC()

	sm.log.Info("Sky irradiance model initialized",
		"model_path", sm.settings.Forecast.Model.Path,
		"input_size", sm.inputSize,
		"threads", threads,
		"total_cpus", runtime.NumCPU(),
		"load_time", time.Since(start).String())

	return nil
}

// determineThreadCount resolves the interpreter thread count from settings,
// capping at the available CPUs.
func (sm *SkyModel) determineThreadCount(configured int) int {
	if configured > 0 && configured <= runtime.NumCPU() {
		return configured
	}
	return runtime.NumCPU()
}

// InputSize returns the square input resolution the model expects.
func (sm *SkyModel) InputSize() int {
	return sm.inputSize
}

// Predict runs inference on a prepared NHWC image tensor and returns the
// model's single scaled output. The interpreter is not reentrant, so calls
// are serialized with a mutex.
func (sm *SkyModel) Predict(tensor []float32) (float32, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	inputTensor := sm.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return 0, errors.Newf("cannot get input tensor").
			Component("skymodel").
			Category(errors.CategoryInference).
			Build()
	}

	input := inputTensor.Float32s()
	if len(input) != len(tensor) {
		return 0, errors.Newf("input tensor size mismatch: model expects %d values, got %d", len(input), len(tensor)).
			Component("skymodel").
			Category(errors.CategoryInference).
			Context("input_size", sm.inputSize).
			Build()
	}
	copy(input, tensor)

	if status := sm.interpreter.Invoke(); status != tflite.OK {
		return 0, errors.Newf("tensor invoke failed: %v", status).
			Component("skymodel").
			Category(errors.CategoryInference).
			Build()
	}

	outputTensor := sm.interpreter.GetOutputTensor(0)
	if outputTensor == nil {
		return 0, errors.Newf("cannot get output tensor").
			Component("skymodel").
			Category(errors.CategoryInference).
			Build()
	}

	out := outputTensor.Float32s()
	if len(out) == 0 {
		return 0, errors.Newf("model produced empty output").
			Component("skymodel").
			Category(errors.CategoryInference).
			Build()
	}

	return out[0], nil
}

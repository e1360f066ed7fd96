// Пакет workflow — конечный автомат export-задания.
//
// Три ветки по типу задания (начальное состояние classify, терминальные
// succeeded/failed):
//   - single_file:       classify → single_file_transfer → succeeded
//   - large_individual:  classify → large_individual_link → succeeded
//   - standard:          classify → init_archive → parallel_fan_out →
//     merge_results → init_multipart → manifest_loop →
//     complete_multipart → succeeded
//
// Любая необработанная ошибка любого состояния → failed.
// Автомат детерминирован: из каждого состояния ровно один успешный переход,
// выбираемый по типу задания. Оркестратор персистит состояние после каждого
// перехода, поэтому workflow переживает рестарт процесса.
package workflow

import (
	"fmt"

	"github.com/bigkaa/goartstore/export-module/internal/domain/model"
)

// State — состояние workflow export-задания.
type State string

const (
	// StateClassify — разрешение ассетов в каталоге и выбор ветки.
	StateClassify State = "classify"
	// StateSingleFileTransfer — прямое копирование единственного мелкого файла.
	StateSingleFileTransfer State = "single_file_transfer"
	// StateLargeIndividualLink — прямая ссылка на единственный крупный файл.
	StateLargeIndividualLink State = "large_individual_link"
	// StateInitArchive — создание пустого архива на scratch-хранилище.
	StateInitArchive State = "init_archive"
	// StateParallelFanOut — параллельные ветки: сборка архива + прямые ссылки.
	StateParallelFanOut State = "parallel_fan_out"
	// StateMergeResults — слияние результатов параллельных веток.
	StateMergeResults State = "merge_results"
	// StateInitMultipart — инициализация multipart upload и манифеста частей.
	StateInitMultipart State = "init_multipart"
	// StateManifestLoop — батчи манифеста → fan-out загрузки частей.
	StateManifestLoop State = "manifest_loop"
	// StateCompleteMultipart — финализация multipart upload.
	StateCompleteMultipart State = "complete_multipart"
	// StateSucceeded — терминальное успешное состояние.
	StateSucceeded State = "succeeded"
	// StateFailed — терминальное состояние с причиной на Job-записи.
	StateFailed State = "failed"
)

// TransitionError — ошибка недопустимого перехода.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("недопустимый переход workflow: %s → %s", e.From, e.To)
}

// successor возвращает следующее состояние успешной ветки.
// Для classify преемник зависит от типа задания.
var successor = map[State]State{
	StateSingleFileTransfer:  StateSucceeded,
	StateLargeIndividualLink: StateSucceeded,
	StateInitArchive:         StateParallelFanOut,
	StateParallelFanOut:      StateMergeResults,
	StateMergeResults:        StateInitMultipart,
	StateInitMultipart:       StateManifestLoop,
	StateManifestLoop:        StateCompleteMultipart,
	StateCompleteMultipart:   StateSucceeded,
}

// classifyBranch — выбор ветки после классификации по типу задания.
var classifyBranch = map[model.JobType]State{
	model.JobTypeSingleFile:      StateSingleFileTransfer,
	model.JobTypeLargeIndividual: StateLargeIndividualLink,
	model.JobTypeStandard:        StateInitArchive,
}

// IsValid проверяет, что состояние известно автомату.
func (s State) IsValid() bool {
	switch s {
	case StateClassify, StateSingleFileTransfer, StateLargeIndividualLink,
		StateInitArchive, StateParallelFanOut, StateMergeResults,
		StateInitMultipart, StateManifestLoop, StateCompleteMultipart,
		StateSucceeded, StateFailed:
		return true
	}
	return false
}

// IsTerminal проверяет, что состояние терминально.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Next возвращает следующее состояние успешной ветки.
// Для StateClassify ветка выбирается по jobType; для остальных состояний
// jobType игнорируется. Для терминальных состояний возвращается ошибка.
func Next(current State, jobType model.JobType) (State, error) {
	if current == StateClassify {
		next, ok := classifyBranch[jobType]
		if !ok {
			return "", fmt.Errorf("неизвестный тип задания: %q", jobType)
		}
		return next, nil
	}

	next, ok := successor[current]
	if !ok {
		return "", &TransitionError{From: current, To: StateSucceeded}
	}
	return next, nil
}

// CanTransition проверяет допустимость перехода current → target
// (включая переход в failed, допустимый из любого нетерминального состояния).
func CanTransition(current, target State, jobType model.JobType) bool {
	if current.IsTerminal() {
		return false
	}
	if target == StateFailed {
		return true
	}
	next, err := Next(current, jobType)
	return err == nil && next == target
}

// StatusFor возвращает статус Job-записи, соответствующий состоянию workflow.
// Движок обновляет статус транзакционно с каждым переходом.
func StatusFor(s State) model.JobStatus {
	switch s {
	case StateSucceeded:
		return model.StatusCompleted
	case StateFailed:
		return model.StatusFailed
	default:
		return model.StatusProcessing
	}
}

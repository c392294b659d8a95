package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/photozen/internal/metrics"
	"github.com/hitoshi/photozen/internal/model"
	"github.com/hitoshi/photozen/internal/repository"
	"github.com/hitoshi/photozen/internal/swipe"
)

// purgePageSize は一括退避時にカタログを読むページサイズ。
const purgePageSize = 200

// Config はServiceの動作設定。
type Config struct {
	// Tuning はスワイプ判定の閾値設定。
	Tuning swipe.Tuning
	// ComboRule はコンボ計算のルール設定。
	ComboRule swipe.ComboRule
	// CardSortingAlbumEnabled はtrueのときCLASSIFYステージを省略する。
	CardSortingAlbumEnabled bool
}

// Service は片づけセッションのドメインロジックを統括する。
//
// 仕分け操作はローカル状態（写真ステータス・カウンタ・コンボ）を先に確定させ、
// 実ファイルの移動はキュー経由でワーカーに委ねる。ファイル操作が失敗しても
// ステージとコンボは巻き戻さない。
//
// セッションを変更する操作はmuで直列化する。読み取り→判定→更新の列が
// 交錯すると カウンタの二重減算やステージの二重遷移が起きるため。
type Service struct {
	sessions  repository.WorkflowSessionRepository
	photos    repository.PhotoRepository
	events    repository.ClassificationEventRepository
	mutations repository.MediaMutationRepository
	albums    repository.AlbumRepository
	sink      EventSink
	collector metrics.MetricsCollector
	cfg       Config

	mu sync.Mutex
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	sessions repository.WorkflowSessionRepository,
	photos repository.PhotoRepository,
	events repository.ClassificationEventRepository,
	mutations repository.MediaMutationRepository,
	albums repository.AlbumRepository,
	sink EventSink,
	collector metrics.MetricsCollector,
	cfg Config,
) *Service {
	return &Service{
		sessions:  sessions,
		photos:    photos,
		events:    events,
		mutations: mutations,
		albums:    albums,
		sink:      sink,
		collector: collector,
		cfg:       cfg,
	}
}

// SwipeResult はスワイプ操作の結果を表す。
// 確定閾値に届かなかった場合、Committedはfalseでセッションは変化しない。
type SwipeResult struct {
	Session     *model.WorkflowSession
	Gesture     swipe.Gesture
	Committed   bool
	ComboLevel  int
	Transitions []Transition
}

// StageResult はステージ内操作の結果を表す。
// 操作によって自動進行が起きた場合、Transitionsに遷移列が入る。
type StageResult struct {
	Session     *model.WorkflowSession
	Transitions []Transition
}

// SkipResult はスキップ要求の結果を表す。
// 残作業がある場合は確認待ちとなり、ConfirmationRequiredがtrueになる。
type SkipResult struct {
	Session              *model.WorkflowSession
	ConfirmationRequired bool
	Remaining            int
	Transitions          []Transition
}

// Start は新しい片づけセッションを開始する。
// カウンタは現在のカタログのステータス集計で初期化する。
// アクティブセッションが既に存在する場合はエラーを返す。
func (s *Service) Start(ctx context.Context) (*model.WorkflowSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.sessions.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("セッションの確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewSessionActiveError()
	}

	counts, err := s.photos.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("写真の集計に失敗しました: %w", err)
	}

	now := time.Now()
	session := &model.WorkflowSession{
		ID:                      uuid.New().String(),
		Status:                  model.SessionStatusActive,
		Stage:                   model.StageSwipe,
		CardSortingAlbumEnabled: s.cfg.CardSortingAlbumEnabled,
		UnsortedRemaining:       counts.Unsorted,
		MaybeRemaining:          counts.Maybe,
		KeepCount:               counts.Keep,
		TrashRemaining:          counts.Trash,
		StartedAt:               now,
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	s.publish(SessionStarted{SessionID: session.ID, Stage: session.Stage})
	return session, nil
}

// Current はアクティブなセッションを返す。存在しない場合はnilを返す。
func (s *Service) Current(ctx context.Context) (*model.WorkflowSession, error) {
	return s.sessions.FindActive(ctx)
}

// Swipe はSWIPEステージでのスワイプジェスチャーを処理する。
// ドラッグ量から方向を判定し、確定閾値に達していれば写真のステータスを
// 更新してコンボとカウンタを進める。閾値未満の場合は何も変更しない。
func (s *Service) Swipe(ctx context.Context, photoID string, dx, dy float64) (*SwipeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.activeSession(ctx)
	if err != nil {
		return nil, err
	}
	if session.Stage != model.StageSwipe {
		return nil, model.NewStageMismatchError(session.Stage, "スワイプ仕分け")
	}

	gesture := swipe.Classify(dx, dy, s.cfg.Tuning)
	if !gesture.ReachedThreshold || gesture.Direction == swipe.DirectionNone {
		return &SwipeResult{Session: session, Gesture: gesture}, nil
	}

	photo, err := s.photos.FindByID(ctx, photoID)
	if err != nil {
		return nil, fmt.Errorf("写真の取得に失敗しました: %w", err)
	}
	if photo == nil {
		return nil, model.NewPhotoNotFoundError(photoID)
	}
	if photo.Status != model.PhotoStatusUnsorted {
		return nil, model.NewPhotoNotInStatusError(photoID, model.PhotoStatusUnsorted)
	}

	outcome := gesture.Outcome
	if err := s.photos.UpdateStatus(ctx, photoID, outcome); err != nil {
		return nil, fmt.Errorf("写真ステータスの更新に失敗しました: %w", err)
	}

	combo := ApplyClassification(session, outcome, s.cfg.ComboRule)

	event := &model.ClassificationEvent{
		ID:          uuid.New().String(),
		SessionID:   session.ID,
		PhotoID:     photoID,
		Outcome:     outcome,
		ComboStreak: combo.Streak,
		ComboLevel:  combo.Level,
		CreatedAt:   time.Now(),
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("仕分け記録の保存に失敗しました: %w", err)
	}

	transitions := AdvanceIfCleared(session)
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの更新に失敗しました: %w", err)
	}

	if s.collector != nil {
		s.collector.RecordClassification(string(outcome))
	}
	s.publish(ClassificationRecorded{
		SessionID:   session.ID,
		PhotoID:     photoID,
		Outcome:     outcome,
		ComboStreak: combo.Streak,
		ComboLevel:  combo.Level,
	})
	s.publishTransitions(session.ID, transitions, true)

	return &SwipeResult{
		Session:     session,
		Gesture:     gesture,
		Committed:   true,
		ComboLevel:  combo.Level,
		Transitions: transitions,
	}, nil
}

// ResolveCompare はCOMPAREステージで保留写真1枚を再判定する。
// outcomeはkeepまたはtrashのいずれか。コンボには影響しない。
func (s *Service) ResolveCompare(ctx context.Context, photoID string, outcome model.PhotoStatus) (*StageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.activeSession(ctx)
	if err != nil {
		return nil, err
	}
	if session.Stage != model.StageCompare {
		return nil, model.NewStageMismatchError(session.Stage, "保留の再判定")
	}
	if outcome != model.PhotoStatusKeep && outcome != model.PhotoStatusTrash {
		return nil, &model.APIError{
			Code:     model.ErrCodeInvalidStatus,
			Message:  fmt.Sprintf("再判定の結果が無効です: %s", outcome),
			Category: "validation",
			Action:   "再判定の結果には keep または trash を指定してください。",
		}
	}

	if err := s.resolveMaybe(ctx, session, photoID, outcome); err != nil {
		return nil, err
	}

	return s.settle(ctx, session)
}

// Duel はCOMPAREステージで保留写真2枚を比較し、勝者を残して敗者を削除候補にする。
func (s *Service) Duel(ctx context.Context, winnerID, loserID string) (*StageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.activeSession(ctx)
	if err != nil {
		return nil, err
	}
	if session.Stage != model.StageCompare {
		return nil, model.NewStageMismatchError(session.Stage, "保留の再判定")
	}
	if winnerID == loserID {
		return nil, model.NewInvalidDuelError()
	}

	if err := s.resolveMaybe(ctx, session, winnerID, model.PhotoStatusKeep); err != nil {
		return nil, err
	}
	if err := s.resolveMaybe(ctx, session, loserID, model.PhotoStatusTrash); err != nil {
		return nil, err
	}

	return s.settle(ctx, session)
}

// NextClassify はCLASSIFYステージで次に振り分ける写真を返す。
// 全Keep写真の判断が終わっている場合はnilを返す。
func (s *Service) NextClassify(ctx context.Context) (*model.Photo, error) {
	session, err := s.activeSession(ctx)
	if err != nil {
		return nil, err
	}
	if session.Stage != model.StageClassify {
		return nil, model.NewStageMismatchError(session.Stage, "アルバム振り分け")
	}
	return s.photos.KeptAtIndex(ctx, session.ClassifyIndex)
}

// AssignAlbum はCLASSIFYステージで写真をアルバムへ振り分ける。
// カタログ上の所属を先に確定させ、実ファイルの移動はキューに登録する。
func (s *Service) AssignAlbum(ctx context.Context, photoID, albumID string) (*StageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.activeSession(ctx)
	if err != nil {
		return nil, err
	}
	if session.Stage != model.StageClassify {
		return nil, model.NewStageMismatchError(session.Stage, "アルバム振り分け")
	}

	album, err := s.albums.FindByID(ctx, albumID)
	if err != nil {
		return nil, fmt.Errorf("アルバムの取得に失敗しました: %w", err)
	}
	if album == nil {
		return nil, model.NewAlbumNotFoundError(albumID)
	}

	photo, err := s.photos.FindByID(ctx, photoID)
	if err != nil {
		return nil, fmt.Errorf("写真の取得に失敗しました: %w", err)
	}
	if photo == nil {
		return nil, model.NewPhotoNotFoundError(photoID)
	}
	if photo.Status != model.PhotoStatusKeep {
		return nil, model.NewPhotoNotInStatusError(photoID, model.PhotoStatusKeep)
	}

	if err := s.photos.UpdateAlbum(ctx, photoID, albumID); err != nil {
		return nil, fmt.Errorf("写真のアルバム更新に失敗しました: %w", err)
	}
	if err := s.enqueueMutation(ctx, photoID, model.MutationKindAlbumMove, albumID); err != nil {
		return nil, err
	}

	ApplyClassifyStep(session, true)
	return s.settle(ctx, session)
}

// SkipClassify はCLASSIFYステージで現在の写真を振り分けずに次へ送る。
func (s *Service) SkipClassify(ctx context.Context) (*StageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.activeSession(ctx)
	if err != nil {
		return nil, err
	}
	if session.Stage != model.StageClassify {
		return nil, model.NewStageMismatchError(session.Stage, "アルバム振り分け")
	}

	ApplyClassifyStep(session, false)
	return s.settle(ctx, session)
}

// RestoreTrash はTRASHステージで削除候補を未仕分けに戻す。
// 復元した写真は次回セッションのSWIPE対象になる。ステージは後退しない。
func (s *Service) RestoreTrash(ctx context.Context, photoID string) (*StageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.activeSession(ctx)
	if err != nil {
		return nil, err
	}
	if session.Stage != model.StageTrash {
		return nil, model.NewStageMismatchError(session.Stage, "削除候補の確認")
	}

	photo, err := s.photos.FindByID(ctx, photoID)
	if err != nil {
		return nil, fmt.Errorf("写真の取得に失敗しました: %w", err)
	}
	if photo == nil {
		return nil, model.NewPhotoNotFoundError(photoID)
	}
	if photo.Status != model.PhotoStatusTrash {
		return nil, model.NewPhotoNotInStatusError(photoID, model.PhotoStatusTrash)
	}

	if err := s.photos.UpdateStatus(ctx, photoID, model.PhotoStatusUnsorted); err != nil {
		return nil, fmt.Errorf("写真ステータスの更新に失敗しました: %w", err)
	}

	ApplyTrashResolution(session, true)
	return s.settle(ctx, session)
}

// PurgeTrash はTRASHステージで削除候補をゴミ箱ディレクトリへ退避する。
// photoIDsが空の場合は削除候補の全てを対象にする。
// 実ファイルの退避はキューに登録し、ワーカーが行う。
func (s *Service) PurgeTrash(ctx context.Context, photoIDs []string) (*StageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.activeSession(ctx)
	if err != nil {
		return nil, err
	}
	if session.Stage != model.StageTrash {
		return nil, model.NewStageMismatchError(session.Stage, "削除候補の確認")
	}

	targets, err := s.purgeTargets(ctx, photoIDs)
	if err != nil {
		return nil, err
	}

	for _, photo := range targets {
		if err := s.enqueueMutation(ctx, photo.ID, model.MutationKindTrashMove, ""); err != nil {
			return nil, err
		}
		ApplyTrashResolution(session, false)
	}

	return s.settle(ctx, session)
}

// RequestSkip は現在のステージのスキップを要求する。
// 残作業がある場合は確認待ちにし、残作業がない場合は確認なしで進める。
func (s *Service) RequestSkip(ctx context.Context) (*SkipResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.activeSession(ctx)
	if err != nil {
		return nil, err
	}
	if session.Stage == model.StageVictory {
		return nil, model.NewStageMismatchError(session.Stage, "ステージのスキップ")
	}

	remaining := RemainingInStage(session)
	if remaining == 0 {
		transitions, err := s.forceAdvance(ctx, session)
		if err != nil {
			return nil, err
		}
		return &SkipResult{Session: session, Transitions: transitions}, nil
	}

	session.PendingSkip = true
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの更新に失敗しました: %w", err)
	}

	s.publish(ConfirmationRequested{
		SessionID: session.ID,
		Kind:      "skip",
		Stage:     session.Stage,
		Remaining: remaining,
	})
	return &SkipResult{Session: session, ConfirmationRequired: true, Remaining: remaining}, nil
}

// ConfirmSkip は確認待ちのスキップを確定してステージを進める。
func (s *Service) ConfirmSkip(ctx context.Context) (*StageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.activeSession(ctx)
	if err != nil {
		return nil, err
	}
	if !session.PendingSkip {
		return nil, model.NewNoPendingConfirmationError()
	}

	session.PendingSkip = false
	transitions, err := s.forceAdvance(ctx, session)
	if err != nil {
		return nil, err
	}
	return &StageResult{Session: session, Transitions: transitions}, nil
}

// DeclineSkip は確認待ちのスキップを取り消す。
func (s *Service) DeclineSkip(ctx context.Context) (*model.WorkflowSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.activeSession(ctx)
	if err != nil {
		return nil, err
	}
	if !session.PendingSkip {
		return nil, model.NewNoPendingConfirmationError()
	}

	session.PendingSkip = false
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの更新に失敗しました: %w", err)
	}
	return session, nil
}

// RequestExit はセッションの途中終了を要求する。
// 終了は残作業の有無に関わらず必ず確認を挟む。
func (s *Service) RequestExit(ctx context.Context) (*model.WorkflowSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.activeSession(ctx)
	if err != nil {
		return nil, err
	}

	session.PendingExit = true
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの更新に失敗しました: %w", err)
	}

	s.publish(ConfirmationRequested{
		SessionID: session.ID,
		Kind:      "exit",
		Stage:     session.Stage,
		Remaining: RemainingInStage(session),
	})
	return session, nil
}

// ConfirmExit は確認待ちの途中終了を確定し、セッションを破棄する。
// 仕分け済みの写真ステータスはカタログに残る。
func (s *Service) ConfirmExit(ctx context.Context) (*model.WorkflowSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.activeSession(ctx)
	if err != nil {
		return nil, err
	}
	if !session.PendingExit {
		return nil, model.NewNoPendingConfirmationError()
	}

	now := time.Now()
	session.PendingExit = false
	session.Status = model.SessionStatusAbandoned
	session.EndedAt = &now
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの更新に失敗しました: %w", err)
	}

	s.publish(SessionAbandoned{SessionID: session.ID})
	return session, nil
}

// DeclineExit は確認待ちの途中終了を取り消す。
func (s *Service) DeclineExit(ctx context.Context) (*model.WorkflowSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.activeSession(ctx)
	if err != nil {
		return nil, err
	}
	if !session.PendingExit {
		return nil, model.NewNoPendingConfirmationError()
	}

	session.PendingExit = false
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの更新に失敗しました: %w", err)
	}
	return session, nil
}

// Finish はVICTORYステージでセッションを完了し、集計値を返す。
func (s *Service) Finish(ctx context.Context) (*model.SessionStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.activeSession(ctx)
	if err != nil {
		return nil, err
	}
	if session.Stage != model.StageVictory {
		return nil, model.NewStageMismatchError(session.Stage, "セッション完了")
	}

	now := time.Now()
	session.Status = model.SessionStatusCompleted
	session.EndedAt = &now
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの更新に失敗しました: %w", err)
	}

	stats := &model.SessionStats{
		SortedCount:     session.SortedCount,
		KeptCount:       session.KeptCount,
		TrashedCount:    session.TrashedCount,
		MaybeCount:      session.MaybeCount,
		ClassifiedCount: session.ClassifiedCount,
		BestStreak:      session.BestStreak,
		Duration:        now.Sub(session.StartedAt),
	}

	if s.collector != nil {
		s.collector.RecordSessionCompleted(stats.Duration)
	}
	s.publish(SessionCompleted{SessionID: session.ID, Stats: *stats})
	return stats, nil
}

// activeSession はアクティブセッションを取得する。存在しない場合はエラーを返す。
func (s *Service) activeSession(ctx context.Context) (*model.WorkflowSession, error) {
	session, err := s.sessions.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError()
	}
	return session, nil
}

// resolveMaybe は保留写真1枚のステータスを確定し、カウンタへ反映する。
func (s *Service) resolveMaybe(ctx context.Context, session *model.WorkflowSession, photoID string, outcome model.PhotoStatus) error {
	photo, err := s.photos.FindByID(ctx, photoID)
	if err != nil {
		return fmt.Errorf("写真の取得に失敗しました: %w", err)
	}
	if photo == nil {
		return model.NewPhotoNotFoundError(photoID)
	}
	if photo.Status != model.PhotoStatusMaybe {
		return model.NewPhotoNotInStatusError(photoID, model.PhotoStatusMaybe)
	}

	if err := s.photos.UpdateStatus(ctx, photoID, outcome); err != nil {
		return fmt.Errorf("写真ステータスの更新に失敗しました: %w", err)
	}

	ApplyCompareResolution(session, outcome)
	return nil
}

// purgeTargets は退避対象の写真を解決する。
// photoIDsが空の場合は削除候補の全写真をページングで集める。
// 退避済みの写真は対象に含めない。
func (s *Service) purgeTargets(ctx context.Context, photoIDs []string) ([]*model.Photo, error) {
	if len(photoIDs) == 0 {
		var targets []*model.Photo
		var cursor time.Time
		for {
			page, err := s.photos.List(ctx, model.PhotoStatusTrash, cursor, purgePageSize)
			if err != nil {
				return nil, fmt.Errorf("削除候補の取得に失敗しました: %w", err)
			}
			if len(page) == 0 {
				break
			}
			targets = append(targets, page...)
			cursor = page[len(page)-1].AddedAt
			if len(page) < purgePageSize {
				break
			}
		}
		return targets, nil
	}

	targets := make([]*model.Photo, 0, len(photoIDs))
	for _, id := range photoIDs {
		photo, err := s.photos.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("写真の取得に失敗しました: %w", err)
		}
		if photo == nil {
			return nil, model.NewPhotoNotFoundError(id)
		}
		if photo.Status != model.PhotoStatusTrash {
			return nil, model.NewPhotoNotInStatusError(id, model.PhotoStatusTrash)
		}
		if photo.PurgedAt != nil {
			continue
		}
		targets = append(targets, photo)
	}
	return targets, nil
}

// enqueueMutation はファイル操作をキューに登録する。
func (s *Service) enqueueMutation(ctx context.Context, photoID string, kind model.MutationKind, destAlbumID string) error {
	now := time.Now()
	mutation := &model.MediaMutation{
		ID:            uuid.New().String(),
		PhotoID:       photoID,
		Kind:          kind,
		DestAlbumID:   destAlbumID,
		Status:        model.MutationStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.mutations.Create(ctx, mutation); err != nil {
		return fmt.Errorf("ファイル操作の登録に失敗しました: %w", err)
	}
	return nil
}

// settle は自動進行を判定してセッションを保存し、遷移を通知する。
func (s *Service) settle(ctx context.Context, session *model.WorkflowSession) (*StageResult, error) {
	transitions := AdvanceIfCleared(session)
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの更新に失敗しました: %w", err)
	}
	s.publishTransitions(session.ID, transitions, true)
	return &StageResult{Session: session, Transitions: transitions}, nil
}

// forceAdvance はステージを強制的に1つ進め、続けて自動進行を判定して保存する。
func (s *Service) forceAdvance(ctx context.Context, session *model.WorkflowSession) ([]Transition, error) {
	forced, ok := ForceAdvance(session)
	if !ok {
		return nil, model.NewStageMismatchError(session.Stage, "ステージのスキップ")
	}
	cascaded := AdvanceIfCleared(session)

	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの更新に失敗しました: %w", err)
	}

	s.publishTransitions(session.ID, []Transition{forced}, false)
	s.publishTransitions(session.ID, cascaded, true)

	transitions := make([]Transition, 0, 1+len(cascaded))
	transitions = append(transitions, forced)
	transitions = append(transitions, cascaded...)
	return transitions, nil
}

// publish はイベントを配信する。配信先が未設定の場合は何もしない。
func (s *Service) publish(event Event) {
	if s.sink == nil {
		return
	}
	s.sink.Publish(event)
}

// publishTransitions はステージ遷移を順に配信し、メトリクスへ記録する。
func (s *Service) publishTransitions(sessionID string, transitions []Transition, auto bool) {
	for _, t := range transitions {
		if s.collector != nil {
			s.collector.RecordStageTransition(string(t.To))
		}
		s.publish(StageTransitioned{SessionID: sessionID, From: t.From, To: t.To, Auto: auto})
	}
}

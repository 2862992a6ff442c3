package participant

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/examhall/core"
)

var (
	// errors
	ErrNotFound     = core.NewNotFoundError("Access Id not found")
	errUnknownTrack = core.NewValidationError(nil, core.FieldError{Field: "track", Error: "unknown exam track"})

	accessLinkTemplate = "access_link"
)

type (
	Repository interface {
		CreateParticipants(ctx context.Context, participants []Participant, exec ...core.DBExecutor) ([]Participant, error)
		GetParticipant(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Participant, error)
		QueryParticipants(ctx context.Context, exec ...core.DBExecutor) ([]Participant, error)
		// LatchStart sets the track's start time to now only if it is still unset,
		// and returns the stored start time either way. started is true for the call that set it.
		LatchStart(ctx context.Context, id int, trackID string, now time.Time, exec ...core.DBExecutor) (start time.Time, started bool, err error)
	}

	Service interface {
		Create(ctx context.Context, np NewParticipant) (Participant, error)
		Import(ctx context.Context, nps []NewParticipant) ([]Participant, error)
		GetByID(ctx context.Context, id int) (Participant, error)
		GetByToken(ctx context.Context, token string) (Participant, error)
		QueryAll(ctx context.Context) ([]Participant, error)
		AccessLink(p Participant) AccessLink
		ExportAccessLinks(ctx context.Context) ([]AccessLink, error)
		SendAccessLinks(ctx context.Context) (core.SendResult, error)
		GetOrStart(ctx context.Context, p Participant, trackID string) (Session, error)
	}

	service struct {
		tx       core.TxRunner
		repo     Repository
		mailSvc  core.EmailService
		validate *validator.Validate
		metrics  core.Metrics
		conf     *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(
	tx core.TxRunner,
	repo Repository,
	mailSvc core.EmailService,
	validate *validator.Validate,
	metrics core.Metrics,
	conf *core.Config,
) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(tx, "tx"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(validate, "validate"),
		vala.IsNotNil(metrics, "metrics"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &service{
		tx:       tx,
		repo:     repo,
		mailSvc:  mailSvc,
		validate: validate,
		metrics:  metrics,
		conf:     conf,
	}
}

func newAccessToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func (svc *service) Create(ctx context.Context, np NewParticipant) (Participant, error) {
	if err := np.Validate(svc.validate); err != nil {
		return Participant{}, err
	}
	created, err := svc.repo.CreateParticipants(ctx, []Participant{svc.build(np)})
	if err != nil {
		return Participant{}, errors.Wrap(err, "creating participant")
	}
	return created[0], nil
}

// Import registers all participants at once; nothing is created if any row is invalid.
func (svc *service) Import(ctx context.Context, nps []NewParticipant) ([]Participant, error) {
	if len(nps) == 0 {
		return []Participant{}, nil
	}

	var fldErrs []core.FieldError
	participants := make([]Participant, 0, len(nps))
	for i := range nps {
		if err := nps[i].Validate(svc.validate); err != nil {
			vErrs, ok := err.(validator.ValidationErrors)
			if !ok {
				return nil, err
			}
			for _, vErr := range vErrs {
				fldErrs = append(fldErrs, core.FieldError{
					Field: fmt.Sprintf("rows[%d].%s", i, vErr.Field()),
					Error: vErr.Tag(),
				})
			}
			continue
		}
		participants = append(participants, svc.build(nps[i]))
	}
	if len(fldErrs) > 0 {
		return nil, core.NewValidationError(errors.New("invalid participants"), fldErrs...)
	}

	var created []Participant
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		created, err = svc.repo.CreateParticipants(ctx, participants, exec)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "importing participants")
	}
	return created, nil
}

func (svc *service) build(np NewParticipant) Participant {
	return Participant{
		AccessToken:   newAccessToken(),
		Nickname:      np.Nickname,
		Email:         np.Email,
		PreferredLang: np.PreferredLang,
		CreatedAt:     core.NowFunc(),
	}
}

func (svc *service) GetByID(ctx context.Context, id int) (Participant, error) {
	return svc.repo.GetParticipant(ctx, GetFilter{ID: id})
}

func (svc *service) GetByToken(ctx context.Context, token string) (Participant, error) {
	token = core.CleanString(token)
	if token == "" {
		return Participant{}, ErrNotFound
	}
	return svc.repo.GetParticipant(ctx, GetFilter{AccessToken: token})
}

func (svc *service) QueryAll(ctx context.Context) ([]Participant, error) {
	return svc.repo.QueryParticipants(ctx)
}

func (svc *service) AccessLink(p Participant) AccessLink {
	return AccessLink{
		Nickname: p.Nickname,
		Email:    p.Email,
		URL:      svc.conf.FrontendBaseURL + "/user/" + p.AccessToken,
	}
}

func (svc *service) ExportAccessLinks(ctx context.Context) ([]AccessLink, error) {
	participants, err := svc.repo.QueryParticipants(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying participants")
	}
	links := make([]AccessLink, 0, len(participants))
	for _, p := range participants {
		links = append(links, svc.AccessLink(p))
	}
	return links, nil
}

// SendAccessLinks emails every participant that has an email address their access link.
func (svc *service) SendAccessLinks(ctx context.Context) (core.SendResult, error) {
	links, err := svc.ExportAccessLinks(ctx)
	if err != nil {
		return core.SendResult{}, err
	}
	messages := make([]*core.EmailMessage, 0, len(links))
	for _, link := range links {
		if link.Email == "" {
			continue
		}
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: link.Nickname, Address: link.Email}},
			Subject:      "Your exam access link",
			TemplateName: accessLinkTemplate,
			TemplateData: link,
		})
	}
	return svc.mailSvc.SendMessagesAndWait(messages...), nil
}

// GetOrStart returns the participant's session on the track, starting it on first access.
// In dry-run mode the start is never stored and is always now.
func (svc *service) GetOrStart(ctx context.Context, p Participant, trackID string) (Session, error) {
	track, ok := svc.conf.Exam.Track(trackID)
	if !ok {
		return Session{}, errUnknownTrack
	}

	now := core.NowFunc()
	if svc.conf.Exam.DryRun {
		return newSession(track, now, now), nil
	}
	if start := p.StartedAt(trackID); start != nil {
		return newSession(track, *start, now), nil
	}

	var (
		start   time.Time
		started bool
	)
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		start, started, err = svc.repo.LatchStart(ctx, p.ID, trackID, now, exec)
		return err
	})
	if err != nil {
		return Session{}, errors.Wrap(err, "latching start time")
	}
	if started {
		svc.metrics.IncSessionStarts(trackID)
	}
	return newSession(track, start, now), nil
}

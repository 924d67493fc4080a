package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mediavault/tubefetch/internal/config"
	"github.com/mediavault/tubefetch/internal/models"
	"github.com/mediavault/tubefetch/internal/repository"
	"github.com/mediavault/tubefetch/internal/service"
)

const historyPageSize = 10

type Bot struct {
	cfg          config.Config
	api          *tgbotapi.BotAPI
	log          *slog.Logger
	users        *service.UserService
	ledger       *service.LedgerService
	jobs         *service.JobService
	topups       *service.TopupService
	registration *service.RegistrationService
	bonus        *service.BonusService
	membership   *Membership
	state        *StateManager
}

func NewBot(cfg config.Config, api *tgbotapi.BotAPI, log *slog.Logger, users *service.UserService, ledger *service.LedgerService, jobs *service.JobService, topups *service.TopupService, registration *service.RegistrationService, bonus *service.BonusService, membership *Membership) *Bot {
	return &Bot{
		cfg:          cfg,
		api:          api,
		log:          log,
		users:        users,
		ledger:       ledger,
		jobs:         jobs,
		topups:       topups,
		registration: registration,
		bonus:        bonus,
		membership:   membership,
		state:        NewStateManager(),
	}
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("telegram bot started", "username", b.api.Self.UserName)

	for {
		select {
		case update := <-updates:
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			} else if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
			}
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	user, err := b.ensureUser(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		b.log.Error("ensure user", "err", err)
		return
	}
	if user.Banned {
		b.sendText(msg.Chat.ID, "Your account is blocked. Contact "+b.cfg.AdminContact+".")
		return
	}

	if len(msg.Photo) > 0 || msg.Document != nil {
		b.handleProofUpload(ctx, msg)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if looksLikeMediaURL(text) {
		b.handleMediaURL(ctx, msg.Chat.ID, user, text)
		return
	}

	b.sendText(msg.Chat.ID, "Send me a YouTube video or playlist link, or use /help.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg.Chat.ID, user)
	case "help":
		b.sendText(msg.Chat.ID, helpText(b.cfg.IsAdmin(user.TelegramID)))
	case "token", "balance":
		b.showTokens(ctx, msg.Chat.ID, user)
	case "history":
		b.showHistory(ctx, msg.Chat.ID, user)
	case "bonus":
		b.claimBonus(ctx, msg.Chat.ID, user)
	case "topup":
		b.showTopupMenu(msg.Chat.ID)
	case "cancel":
		b.handleCancel(msg, user)
	case "addtoken":
		b.handleAddToken(ctx, msg, user)
	case "ban":
		b.handleSetBanned(ctx, msg, user, true)
	case "unban":
		b.handleSetBanned(ctx, msg, user, false)
	case "stats":
		b.handleStats(ctx, msg.Chat.ID, user)
	case "users":
		b.handleUsers(ctx, msg.Chat.ID, user)
	case "pending":
		b.handlePending(ctx, msg.Chat.ID, user)
	case "broadcast":
		b.handleBroadcast(ctx, msg, user)
	default:
		b.sendText(msg.Chat.ID, "Unknown command. Use /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID int64, user *models.User) {
	result, err := b.registration.EnsureRegistered(ctx, user)
	if err != nil {
		b.log.Error("registration gate", "user", user.TelegramID, "err", err)
	}
	if result == service.NotYetMember {
		b.sendRegistrationPrompt(chatID)
		return
	}

	greeting := fmt.Sprintf("Hi, %s! 👋\n\n", displayOr(user, "there"))
	if result == service.JustRegistered {
		greeting += fmt.Sprintf("You received %d welcome tokens. 🎉\n\n", b.cfg.WelcomeBonusTokens)
	}
	greeting += "Send me a YouTube video or playlist link and I will fetch it for you.\nEach video costs 1 token."

	reply := tgbotapi.NewMessage(chatID, greeting)
	reply.ReplyMarkup = mainMenuKeyboard()
	b.send(reply)
}

func (b *Bot) handleMediaURL(ctx context.Context, chatID int64, user *models.User, url string) {
	result, err := b.registration.EnsureRegistered(ctx, user)
	if err != nil {
		b.log.Error("registration gate", "user", user.TelegramID, "err", err)
	}
	if result == service.NotYetMember {
		b.sendRegistrationPrompt(chatID)
		return
	}

	b.sendText(chatID, "🔍 Checking the link...")

	quote, err := b.jobs.Prepare(ctx, url)
	if err != nil {
		b.log.Error("prepare quote", "url", url, "err", err)
		b.sendText(chatID, "Could not read that link. Make sure the video exists and is public.")
		return
	}

	balance, err := b.ledger.Balance(ctx, user.ID)
	if err != nil {
		b.log.Error("read balance", "user", user.ID, "err", err)
		b.sendText(chatID, "Something went wrong, please try again.")
		return
	}
	if !b.cfg.IsAdmin(user.TelegramID) && balance < quote.Cost {
		b.sendText(chatID, fmt.Sprintf(
			"Not enough tokens: this request costs %d, you have %d.\nUse /topup to buy more or /bonus for your daily bonus.",
			quote.Cost, balance))
		return
	}

	b.state.Set(chatID, &Session{
		Stage:      StageAwaitingFormat,
		PendingURL: url,
		Quote:      quote,
	})

	text := "📌 " + quote.Info.Title
	if quote.Info.Playlist {
		text = fmt.Sprintf("📚 Playlist: %s (%d videos)", quote.Info.Title, quote.Info.ItemCount())
	}
	text += fmt.Sprintf("\n💰 Cost: %d token(s) · Balance: %d\n\nChoose a format:", quote.Cost, balance)

	reply := tgbotapi.NewMessage(chatID, text)
	reply.ReplyMarkup = formatKeyboard()
	b.send(reply)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	action, err := DecodeAction(cb.Data)
	if err != nil {
		b.log.Error("decode callback", "data", cb.Data, "err", err)
		b.answerCallback(cb.ID, "Unknown action")
		return
	}

	user, err := b.ensureUser(ctx, cb.From, chatID)
	if err != nil {
		b.log.Error("ensure user callback", "err", err)
		b.answerCallback(cb.ID, "Try again")
		return
	}
	if user.Banned {
		b.answerCallback(cb.ID, "Account blocked")
		return
	}

	switch act := action.(type) {
	case BackToMenuAction:
		b.answerCallback(cb.ID, "")
		b.state.Reset(chatID)
		reply := tgbotapi.NewMessage(chatID, "Main menu:")
		reply.ReplyMarkup = mainMenuKeyboard()
		b.send(reply)
	case SelectFormatAction:
		b.answerCallback(cb.ID, "Format selected")
		b.selectFormat(chatID, act.Format)
	case SelectDeliveryAction:
		b.answerCallback(cb.ID, "")
		b.selectDelivery(ctx, chatID, user, act.Channel)
	case CancelPendingAction:
		b.answerCallback(cb.ID, "Cancelled")
		b.state.Reset(chatID)
		b.sendText(chatID, "Request cancelled.")
	case VerifyRegistrationAction:
		b.verifyRegistration(ctx, cb, user)
	case ClaimBonusAction:
		b.answerCallback(cb.ID, "")
		b.claimBonus(ctx, chatID, user)
	case ShowTokensAction:
		b.answerCallback(cb.ID, "")
		b.showTokens(ctx, chatID, user)
	case ShowHistoryAction:
		b.answerCallback(cb.ID, "")
		b.showHistory(ctx, chatID, user)
	case ShowTopupMenuAction:
		b.answerCallback(cb.ID, "")
		b.showTopupMenu(chatID)
	case SelectPackageAction:
		b.answerCallback(cb.ID, "")
		b.showPackage(chatID, act.PackageID)
	case SendProofAction:
		b.answerCallback(cb.ID, "")
		b.startProofUpload(ctx, chatID, user, act.PackageID)
	case ApproveTopupAction:
		b.decideTopup(ctx, cb, user, act.RequestID, true, "")
	case RejectTopupAction:
		b.decideTopup(ctx, cb, user, act.RequestID, false, "proof not accepted")
	}
}

func (b *Bot) selectFormat(chatID int64, format string) {
	session := b.state.Get(chatID)
	if session.Stage != StageAwaitingFormat || session.Quote == nil {
		b.sendText(chatID, "Send a link first.")
		return
	}
	session.Format = format
	session.Stage = StageAwaitingDelivery
	b.state.Set(chatID, session)

	reply := tgbotapi.NewMessage(chatID, "How should I deliver it?")
	reply.ReplyMarkup = deliveryKeyboard()
	b.send(reply)
}

func (b *Bot) selectDelivery(ctx context.Context, chatID int64, user *models.User, channel models.DeliveryChannel) {
	session := b.state.Get(chatID)
	if session.Stage != StageAwaitingDelivery || session.Quote == nil {
		b.sendText(chatID, "Send a link first.")
		return
	}
	session.Delivery = channel
	b.state.Reset(chatID)

	jobs, err := b.jobs.Submit(ctx, service.SubmitRequest{
		User:     user,
		Quote:    session.Quote,
		Format:   session.Format,
		Delivery: channel,
	})
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			b.sendText(chatID, "Not enough tokens anymore. Use /topup to buy more.")
			return
		}
		b.log.Error("submit jobs", "user", user.ID, "err", err)
		b.sendText(chatID, "Could not start the download, please try again.")
		return
	}

	if len(jobs) == 1 {
		b.sendText(chatID, "⏳ Download started. I will send the result here when it is ready.")
	} else {
		b.sendText(chatID, fmt.Sprintf("⏳ %d downloads started. Results will arrive one by one.", len(jobs)))
	}
}

func (b *Bot) verifyRegistration(ctx context.Context, cb *tgbotapi.CallbackQuery, user *models.User) {
	chatID := cb.Message.Chat.ID
	result, err := b.registration.EnsureRegistered(ctx, user)
	if err != nil {
		b.log.Error("verify registration", "user", user.TelegramID, "err", err)
	}
	switch result {
	case service.JustRegistered:
		b.answerCallback(cb.ID, "Welcome!")
		b.sendText(chatID, fmt.Sprintf("✅ Registration complete! You received %d welcome tokens.\nSend a YouTube link to get started.", b.cfg.WelcomeBonusTokens))
	case service.AlreadyRegistered:
		b.answerCallback(cb.ID, "Already registered")
		b.sendText(chatID, "You are already registered. Send a YouTube link to get started.")
	default:
		b.answerCallback(cb.ID, "Not a member yet")
		b.sendRegistrationPrompt(chatID)
	}
}

func (b *Bot) claimBonus(ctx context.Context, chatID int64, user *models.User) {
	today := time.Now().UTC().Format("2006-01-02")
	result, err := b.bonus.Claim(ctx, user, today)
	if err != nil {
		if errors.Is(err, service.ErrNotRegistered) {
			b.sendRegistrationPrompt(chatID)
			return
		}
		b.log.Error("claim bonus", "user", user.ID, "err", err)
		b.sendText(chatID, "Could not claim the bonus, please try again.")
		return
	}
	if !result.Credited {
		b.sendText(chatID, fmt.Sprintf("You already claimed today's bonus. Balance: %d tokens.", result.NewBalance))
		return
	}
	b.sendText(chatID, fmt.Sprintf("🎁 +%d tokens! Balance: %d. Come back tomorrow for more.", b.cfg.DailyBonusTokens, result.NewBalance))
}

func (b *Bot) showTokens(ctx context.Context, chatID int64, user *models.User) {
	balance, err := b.ledger.Balance(ctx, user.ID)
	if err != nil {
		b.log.Error("read balance", "user", user.ID, "err", err)
		b.sendText(chatID, "Could not read your balance, please try again.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "💰 Balance: %d tokens\n", balance)

	txs, err := b.ledger.History(ctx, user.ID, historyPageSize)
	if err != nil {
		b.log.Error("read ledger history", "user", user.ID, "err", err)
	} else if len(txs) > 0 {
		sb.WriteString("\nRecent transactions:\n")
		for _, tx := range txs {
			sign := "+"
			if tx.Amount < 0 {
				sign = ""
			}
			fmt.Fprintf(&sb, "%s  %s%d  %s\n", tx.CreatedAt.Format("Jan 02"), sign, tx.Amount, tx.Reason)
		}
	}
	b.sendText(chatID, sb.String())
}

func (b *Bot) showHistory(ctx context.Context, chatID int64, user *models.User) {
	jobs, err := b.jobs.History(ctx, user.ID, historyPageSize)
	if err != nil {
		b.log.Error("read job history", "user", user.ID, "err", err)
		b.sendText(chatID, "Could not read your history, please try again.")
		return
	}
	if len(jobs) == 0 {
		b.sendText(chatID, "No downloads yet. Send a YouTube link to start.")
		return
	}

	var sb strings.Builder
	sb.WriteString("📜 Recent downloads:\n\n")
	for _, job := range jobs {
		title := job.Title
		if title == "" {
			title = job.SourceURL
		}
		fmt.Fprintf(&sb, "%s %s (%s)\n", statusEmoji(job.Status), title, job.Format)
		if job.Status == models.JobCompleted && job.StorageLink != "" {
			fmt.Fprintf(&sb, "   🔗 %s\n", job.StorageLink)
		}
	}
	b.sendText(chatID, sb.String())
}

func (b *Bot) showTopupMenu(chatID int64) {
	reply := tgbotapi.NewMessage(chatID, "💳 Choose a token package:")
	reply.ReplyMarkup = topupKeyboard(b.cfg.Packages)
	b.send(reply)
}

func (b *Bot) showPackage(chatID int64, packageID string) {
	pkg := b.cfg.PackageByID(packageID)
	if pkg == nil {
		b.sendText(chatID, "That package is no longer available.")
		return
	}
	text := fmt.Sprintf(
		"You selected: %d tokens for %s.\n\nTransfer the amount and press \"Send Proof\", then send a screenshot of your payment.",
		pkg.Tokens, formatPrice(pkg.PriceMinorUnits))
	reply := tgbotapi.NewMessage(chatID, text)
	reply.ReplyMarkup = topupConfirmKeyboard(packageID)
	b.send(reply)
}

func (b *Bot) startProofUpload(ctx context.Context, chatID int64, user *models.User, packageID string) {
	pkg := b.cfg.PackageByID(packageID)
	if pkg == nil {
		b.sendText(chatID, "That package is no longer available.")
		return
	}

	req, err := b.topups.CreateRequest(ctx, user.ID, *pkg)
	if err != nil {
		b.log.Error("create topup request", "user", user.ID, "err", err)
		b.sendText(chatID, "Could not create the request, please try again.")
		return
	}

	b.state.Set(chatID, &Session{
		Stage:          StageAwaitingProof,
		TopupPackage:   packageID,
		TopupRequestID: req.ID,
	})
	b.sendText(chatID, fmt.Sprintf("Request #%d created. Now send a photo of your payment proof.", req.ID))
}

func (b *Bot) handleProofUpload(ctx context.Context, msg *tgbotapi.Message) {
	session := b.state.Get(msg.Chat.ID)
	if session.Stage != StageAwaitingProof || session.TopupRequestID == 0 {
		b.sendText(msg.Chat.ID, "Send a YouTube link, or use /topup to buy tokens first.")
		return
	}

	req, err := b.topups.RecordProof(ctx, session.TopupRequestID)
	if err != nil {
		b.log.Error("record proof", "request", session.TopupRequestID, "err", err)
		b.sendText(msg.Chat.ID, "Could not record your proof, please try again.")
		return
	}
	b.state.Reset(msg.Chat.ID)
	b.sendText(msg.Chat.ID, fmt.Sprintf(
		"✅ Proof for request #%d received. An operator will review it shortly; you will be notified here.", req.ID))
}

func (b *Bot) decideTopup(ctx context.Context, cb *tgbotapi.CallbackQuery, operator *models.User, requestID int64, approve bool, notes string) {
	var err error
	if approve {
		_, err = b.topups.Approve(ctx, requestID, operator.TelegramID)
	} else {
		_, err = b.topups.Reject(ctx, requestID, operator.TelegramID, notes)
	}

	switch {
	case err == nil:
		if approve {
			b.answerCallback(cb.ID, "Approved")
		} else {
			b.answerCallback(cb.ID, "Rejected")
		}
		// Drop the decision buttons so the same message cannot be acted on twice.
		edit := tgbotapi.NewEditMessageReplyMarkup(cb.Message.Chat.ID, cb.Message.MessageID,
			tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
		if _, editErr := b.api.Request(edit); editErr != nil {
			b.log.Error("clear decision keyboard", "err", editErr)
		}
	case errors.Is(err, service.ErrAlreadyProcessed):
		b.answerCallback(cb.ID, "Already processed by another operator")
	case errors.Is(err, service.ErrUnauthorized):
		b.answerCallback(cb.ID, "Operators only")
	case errors.Is(err, service.ErrNotFound):
		b.answerCallback(cb.ID, "Request not found")
	default:
		b.log.Error("decide topup", "request", requestID, "err", err)
		b.answerCallback(cb.ID, "Failed, try again")
	}
}

func (b *Bot) handleCancel(msg *tgbotapi.Message, user *models.User) {
	arg := strings.TrimSpace(msg.CommandArguments())
	if arg == "" {
		b.state.Reset(msg.Chat.ID)
		b.sendText(msg.Chat.ID, "Current request cancelled.")
		return
	}

	jobID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.sendText(msg.Chat.ID, "Format: /cancel or /cancel <job id>")
		return
	}
	if b.jobs.Cancel(jobID, user) {
		b.sendText(msg.Chat.ID, fmt.Sprintf("Job #%d cancelled.", jobID))
	} else {
		b.sendText(msg.Chat.ID, fmt.Sprintf("Job #%d is not one of your running jobs.", jobID))
	}
}

func (b *Bot) handleAddToken(ctx context.Context, msg *tgbotapi.Message, operator *models.User) {
	if !b.cfg.IsAdmin(operator.TelegramID) {
		b.sendText(msg.Chat.ID, "Operators only.")
		return
	}
	fields := strings.Fields(msg.CommandArguments())
	if len(fields) != 2 {
		b.sendText(msg.Chat.ID, "Format: /addtoken <telegram id> <amount>")
		return
	}
	telegramID, err1 := strconv.ParseInt(fields[0], 10, 64)
	amount, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil || amount <= 0 {
		b.sendText(msg.Chat.ID, "Format: /addtoken <telegram id> <amount>")
		return
	}

	target, err := b.users.FindByTelegramID(ctx, telegramID)
	if err != nil || target == nil {
		b.sendText(msg.Chat.ID, "User not found.")
		return
	}

	actorID := operator.TelegramID
	balance, err := b.ledger.Credit(ctx, target.ID, amount, &actorID, "manual adjustment")
	if err != nil {
		b.log.Error("manual credit", "target", target.ID, "err", err)
		b.sendText(msg.Chat.ID, "Credit failed.")
		return
	}
	b.sendText(msg.Chat.ID, fmt.Sprintf("Added %d tokens to %d. New balance: %d.", amount, telegramID, balance))
}

func (b *Bot) handleSetBanned(ctx context.Context, msg *tgbotapi.Message, operator *models.User, banned bool) {
	if !b.cfg.IsAdmin(operator.TelegramID) {
		b.sendText(msg.Chat.ID, "Operators only.")
		return
	}
	telegramID, err := strconv.ParseInt(strings.TrimSpace(msg.CommandArguments()), 10, 64)
	if err != nil {
		b.sendText(msg.Chat.ID, "Format: /ban <telegram id> or /unban <telegram id>")
		return
	}

	if err := b.users.SetBanned(ctx, telegramID, banned); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			b.sendText(msg.Chat.ID, "User not found.")
			return
		}
		b.log.Error("set banned", "target", telegramID, "err", err)
		b.sendText(msg.Chat.ID, "Update failed.")
		return
	}
	verb := "banned"
	if !banned {
		verb = "unbanned"
	}
	b.sendText(msg.Chat.ID, fmt.Sprintf("User %d %s.", telegramID, verb))
}

func (b *Bot) handleStats(ctx context.Context, chatID int64, operator *models.User) {
	if !b.cfg.IsAdmin(operator.TelegramID) {
		b.sendText(chatID, "Operators only.")
		return
	}
	stats, err := b.users.Stats(ctx)
	if err != nil {
		b.log.Error("read stats", "err", err)
		b.sendText(chatID, "Could not read stats.")
		return
	}
	b.sendText(chatID, fmt.Sprintf(
		"📊 Stats\nUsers: %d\nTokens in circulation: %d\nCompleted downloads: %d\nRunning jobs: %d",
		stats.TotalUsers, stats.TotalTokens, stats.CompletedJobs, len(b.jobs.Running())))
}

func (b *Bot) handleUsers(ctx context.Context, chatID int64, operator *models.User) {
	if !b.cfg.IsAdmin(operator.TelegramID) {
		b.sendText(chatID, "Operators only.")
		return
	}
	users, err := b.users.ListRecent(ctx, 20)
	if err != nil {
		b.log.Error("list users", "err", err)
		b.sendText(chatID, "Could not list users.")
		return
	}
	if len(users) == 0 {
		b.sendText(chatID, "No users yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("👥 Newest users:\n\n")
	for _, u := range users {
		name := u.DisplayName()
		if name == "" {
			name = strconv.FormatInt(u.TelegramID, 10)
		}
		fmt.Fprintf(&sb, "%s (%d) — %d tokens", name, u.TelegramID, u.Balance)
		if u.Banned {
			sb.WriteString(" 🚫")
		}
		sb.WriteString("\n")
	}
	b.sendText(chatID, sb.String())
}

func (b *Bot) handlePending(ctx context.Context, chatID int64, operator *models.User) {
	if !b.cfg.IsAdmin(operator.TelegramID) {
		b.sendText(chatID, "Operators only.")
		return
	}
	pending, err := b.topups.ListPending(ctx)
	if err != nil {
		b.log.Error("list pending topups", "err", err)
		b.sendText(chatID, "Could not list pending requests.")
		return
	}
	if len(pending) == 0 {
		b.sendText(chatID, "No pending topup requests.")
		return
	}
	for _, req := range pending {
		text := fmt.Sprintf("💳 Request #%d\nUser: %d\nTokens: %d\nPrice: %s\nProof received: %t",
			req.ID, req.UserID, req.TokenAmount, formatPrice(req.PriceMinorUnits), req.ProofReceived)
		reply := tgbotapi.NewMessage(chatID, text)
		reply.ReplyMarkup = operatorDecisionKeyboard(req.ID)
		b.send(reply)
	}
}

func (b *Bot) handleBroadcast(ctx context.Context, msg *tgbotapi.Message, operator *models.User) {
	if !b.cfg.IsAdmin(operator.TelegramID) {
		b.sendText(msg.Chat.ID, "Operators only.")
		return
	}
	text := strings.TrimSpace(msg.CommandArguments())
	if text == "" {
		b.sendText(msg.Chat.ID, "Format: /broadcast <message>")
		return
	}

	ids, err := b.users.ListTelegramIDs(ctx)
	if err != nil {
		b.log.Error("list broadcast recipients", "err", err)
		b.sendText(msg.Chat.ID, "Broadcast failed.")
		return
	}
	sent := 0
	for _, id := range ids {
		if _, err := b.api.Send(tgbotapi.NewMessage(id, text)); err != nil {
			b.log.Error("broadcast send", "recipient", id, "err", err)
			continue
		}
		sent++
	}
	b.sendText(msg.Chat.ID, fmt.Sprintf("Broadcast sent to %d of %d users.", sent, len(ids)))
}

func (b *Bot) sendRegistrationPrompt(chatID int64) {
	text := "To use the bot you need to join our channel first, then press Verify."
	reply := tgbotapi.NewMessage(chatID, text)
	reply.ReplyMarkup = registrationKeyboard(b.membership.ChannelLink())
	b.send(reply)
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User, chatID int64) (*models.User, error) {
	telegramID := chatID
	username, firstName, lastName := "", "", ""
	if from != nil {
		telegramID = from.ID
		username = from.UserName
		firstName = from.FirstName
		lastName = from.LastName
	}
	user, _, err := b.users.Ensure(ctx, telegramID, username, firstName, lastName)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (b *Bot) send(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "err", err)
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.log.Error("callback ack", "err", err)
	}
}

func displayOr(user *models.User, fallback string) string {
	if name := user.DisplayName(); name != "" {
		return name
	}
	return fallback
}

func statusEmoji(status models.JobStatus) string {
	switch status {
	case models.JobCompleted:
		return "✅"
	case models.JobFailed:
		return "❌"
	default:
		return "⏳"
	}
}

func helpText(operator bool) string {
	text := `Send a YouTube video or playlist link to download it.

Commands:
/start — register and open the menu
/token — balance and recent transactions
/history — recent downloads
/bonus — claim your daily bonus
/topup — buy tokens
/cancel — cancel the current request
/help — this message

Each video costs 1 token. Playlists cost 1 token per video.`
	if operator {
		text += `

Operator commands:
/addtoken <id> <amount> — credit tokens
/ban <id> / /unban <id> — block or unblock a user
/stats — usage statistics
/users — newest users
/pending — pending topup requests
/broadcast <message> — message all users`
	}
	return text
}

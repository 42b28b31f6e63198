package webui

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// PracticeFormURL is the public automation practice form.
const PracticeFormURL = "https://app.cloudqa.io/home/AutomationPracticeForm"

var (
	firstNameLocators = []Locator{
		ByID("fname"),
		ByName("fname"),
		ByXPath("//input[@placeholder='First Name']"),
		ByXPath("//label[contains(text(),'First Name')]/following-sibling::input"),
		ByCSS("input[type='text'][placeholder*='First']"),
		ByXPath("//input[contains(@class,'form-control') and contains(@placeholder,'First')]"),
	}

	emailLocators = []Locator{
		ByID("email"),
		ByName("email"),
		ByCSS("input[type='email']"),
		ByXPath("//input[@placeholder='Email']"),
		ByXPath("//label[contains(text(),'Email')]/following-sibling::input"),
		ByXPath("//input[contains(@placeholder,'Email') or contains(@name,'email')]"),
	}

	maleRadioLocators = []Locator{
		ByID("male"),
		ByCSS("input[value='male'][type='radio']"),
		ByXPath("//label[contains(text(),'Male')]/preceding-sibling::input[@type='radio']"),
		ByXPath("//input[@type='radio' and @value='male']"),
		ByXPath("//label[text()='Male']/../input[@type='radio']"),
		ByCSS("input[type='radio'][name*='gender'][value='male']"),
	}
)

// PracticeFormPage is a page object for the practice form.
type PracticeFormPage struct {
	session *Session
	finder  *Finder
	// URL defaults to PracticeFormURL.
	URL string
}

func NewPracticeFormPage(s *Session, f *Finder) *PracticeFormPage {
	return &PracticeFormPage{session: s, finder: f, URL: PracticeFormURL}
}

// Navigate opens the form and waits for the document to load.
func (p *PracticeFormPage) Navigate(ctx context.Context) error {
	if err := p.session.Navigate(ctx, p.URL); err != nil {
		return fmt.Errorf("failed to open %s: %w", p.URL, err)
	}
	return p.finder.WaitForPageLoad(ctx)
}

func (p *PracticeFormPage) FirstNameField(ctx context.Context) (*Element, error) {
	return p.finder.FindElement(ctx, firstNameLocators...)
}

func (p *PracticeFormPage) EmailField(ctx context.Context) (*Element, error) {
	return p.finder.FindElement(ctx, emailLocators...)
}

func (p *PracticeFormPage) MaleRadio(ctx context.Context) (*Element, error) {
	return p.finder.FindClickable(ctx, maleRadioLocators...)
}

func (p *PracticeFormPage) EnterFirstName(ctx context.Context, name string) error {
	return p.enter(ctx, "first name", firstNameLocators, name)
}

func (p *PracticeFormPage) FirstNameValue(ctx context.Context) (string, error) {
	return p.value(ctx, firstNameLocators)
}

func (p *PracticeFormPage) EnterEmail(ctx context.Context, email string) error {
	return p.enter(ctx, "email", emailLocators, email)
}

func (p *PracticeFormPage) EmailValue(ctx context.Context) (string, error) {
	return p.value(ctx, emailLocators)
}

// SelectMale clicks the male radio unless it is already selected.
func (p *PracticeFormPage) SelectMale(ctx context.Context) error {
	el, err := p.MaleRadio(ctx)
	if err != nil {
		return fmt.Errorf("failed to find male radio: %w", err)
	}
	selected, err := el.Selected(ctx)
	if err != nil {
		return err
	}
	if selected {
		return nil
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("failed to select male radio: %w", err)
	}
	log.Info().Msg("selected male gender")
	return nil
}

func (p *PracticeFormPage) IsMaleSelected(ctx context.Context) (bool, error) {
	el, err := p.MaleRadio(ctx)
	if err != nil {
		return false, err
	}
	return el.Selected(ctx)
}

// IsPageLoaded reports whether the browser is on the form with a title.
// Driver errors count as not loaded.
func (p *PracticeFormPage) IsPageLoaded(ctx context.Context) bool {
	u, err := p.session.URL(ctx)
	if err != nil || !strings.Contains(u, "AutomationPracticeForm") {
		return false
	}
	title, err := p.session.Title(ctx)
	return err == nil && title != ""
}

// WaitForFields waits until all three fields can be located.
func (p *PracticeFormPage) WaitForFields(ctx context.Context) error {
	if _, err := p.FirstNameField(ctx); err != nil {
		return fmt.Errorf("first name field: %w", err)
	}
	if _, err := p.EmailField(ctx); err != nil {
		return fmt.Errorf("email field: %w", err)
	}
	if _, err := p.MaleRadio(ctx); err != nil {
		return fmt.Errorf("male radio: %w", err)
	}
	log.Info().Msg("all form fields loaded")
	return nil
}

func (p *PracticeFormPage) enter(ctx context.Context, field string, locators []Locator, text string) error {
	el, err := p.finder.FindElement(ctx, locators...)
	if err != nil {
		return fmt.Errorf("failed to find %s field: %w", field, err)
	}
	return p.finder.SafeSendKeys(ctx, el, text, DefaultSendKeysRetries)
}

func (p *PracticeFormPage) value(ctx context.Context, locators []Locator) (string, error) {
	el, err := p.finder.FindElement(ctx, locators...)
	if err != nil {
		return "", err
	}
	return el.Property(ctx, "value")
}

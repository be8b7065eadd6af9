package preprocessing

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/YuminosukeSato/salesforecast/dataset"
	"github.com/YuminosukeSato/salesforecast/pkg/errors"
)

// LabelEncoder はカテゴリ値を整数コードに変換する
//
// Classes[i] のコードは i。学習時に存在しなかった値は Classes[0] のコード（0）に変換され、
// エラーにはならない。
type LabelEncoder struct {
	Column  string
	Classes []string
	index   map[string]int
	sorted  bool
}

// EncoderOption はLabelEncoderの設定オプション
type EncoderOption func(*LabelEncoder)

// WithSortedClasses は出現順ではなく辞書順でクラスを並べる（scikit-learn と同じ順序）
func WithSortedClasses() EncoderOption {
	return func(e *LabelEncoder) {
		e.sorted = true
	}
}

// NewLabelEncoder は列 column 用の新しいLabelEncoderを作成する
func NewLabelEncoder(column string, opts ...EncoderOption) *LabelEncoder {
	e := &LabelEncoder{Column: column}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fit は値の語彙を学習する（デフォルトは出現順）
func (e *LabelEncoder) Fit(values []string) error {
	if len(values) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	seen := make(map[string]struct{}, 8)
	classes := make([]string, 0, 8)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		classes = append(classes, v)
	}
	if e.sorted {
		sort.Strings(classes)
	}
	e.setClasses(classes)
	return nil
}

func (e *LabelEncoder) setClasses(classes []string) {
	e.Classes = classes
	e.index = make(map[string]int, len(classes))
	for i, c := range classes {
		e.index[c] = i
	}
}

// IsFitted は学習済みかどうかを返す
func (e *LabelEncoder) IsFitted() bool {
	return len(e.Classes) > 0
}

// DefaultClass は未知の値の代わりに使われるクラス
func (e *LabelEncoder) DefaultClass() string {
	if !e.IsFitted() {
		return ""
	}
	return e.Classes[0]
}

// Code は1つの値のコードを返す。known は学習時の語彙に含まれていたかどうか。
func (e *LabelEncoder) Code(value string) (code int, known bool) {
	code, known = e.index[value]
	return code, known
}

// Transform は値をコードに変換する。未知の値の数も返す。
func (e *LabelEncoder) Transform(values []string) ([]float64, int, error) {
	if !e.IsFitted() {
		return nil, 0, errors.NewNotFittedError("LabelEncoder", "Transform")
	}
	codes := make([]float64, len(values))
	unseen := 0
	for i, v := range values {
		code, ok := e.index[v]
		if !ok {
			unseen++
		}
		codes[i] = float64(code)
	}
	return codes, unseen, nil
}

// InverseTransform はコードを元の文字列に戻す
func (e *LabelEncoder) InverseTransform(code int) (string, error) {
	if !e.IsFitted() {
		return "", errors.NewNotFittedError("LabelEncoder", "InverseTransform")
	}
	if code < 0 || code >= len(e.Classes) {
		return "", errors.NewValueError("LabelEncoder.InverseTransform",
			fmt.Sprintf("code %d out of range [0, %d) for column %s", code, len(e.Classes), e.Column))
	}
	return e.Classes[code], nil
}

type labelEncoderJSON struct {
	Column  string   `json:"column"`
	Classes []string `json:"classes"`
}

// MarshalJSON implements json.Marshaler.
func (e *LabelEncoder) MarshalJSON() ([]byte, error) {
	return json.Marshal(labelEncoderJSON{Column: e.Column, Classes: e.Classes})
}

// UnmarshalJSON implements json.Unmarshaler. Classes keep their persisted order.
func (e *LabelEncoder) UnmarshalJSON(data []byte) error {
	var raw labelEncoderJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "unmarshal label encoder")
	}
	if raw.Column == "" {
		return errors.NewValidationError("column", "is required", raw.Column)
	}
	if len(raw.Classes) == 0 {
		return errors.NewValidationError("classes", "must not be empty", raw.Column)
	}
	seen := make(map[string]struct{}, len(raw.Classes))
	for _, c := range raw.Classes {
		if _, dup := seen[c]; dup {
			return errors.NewValidationError("classes", "duplicate class", c)
		}
		seen[c] = struct{}{}
	}
	e.Column = raw.Column
	e.setClasses(raw.Classes)
	return nil
}

// EncoderSet は列名ごとのLabelEncoderの集合
type EncoderSet struct {
	order    []string
	encoders map[string]*LabelEncoder
}

// NewEncoderSet は空のEncoderSetを作成する
func NewEncoderSet() *EncoderSet {
	return &EncoderSet{encoders: make(map[string]*LabelEncoder)}
}

// Add はエンコーダーを追加する。同じ列のエンコーダーは置き換えられる。
func (s *EncoderSet) Add(e *LabelEncoder) {
	if _, ok := s.encoders[e.Column]; !ok {
		s.order = append(s.order, e.Column)
	}
	s.encoders[e.Column] = e
}

// Get は列のエンコーダーを返す
func (s *EncoderSet) Get(column string) (*LabelEncoder, bool) {
	e, ok := s.encoders[column]
	return e, ok
}

// Columns はエンコーダーを持つ列名を追加順に返す
func (s *EncoderSet) Columns() []string {
	return append([]string(nil), s.order...)
}

// Len はエンコーダーの数を返す
func (s *EncoderSet) Len() int {
	return len(s.order)
}

// FitTable はテーブルの全カテゴリ列（exclude を除く）に対してエンコーダーを学習する
func (s *EncoderSet) FitTable(t *dataset.Table, exclude string, opts ...EncoderOption) error {
	for _, name := range t.NamesOfKind(dataset.Categorical) {
		if name == exclude {
			continue
		}
		col, _ := t.Column(name)
		e := NewLabelEncoder(name, opts...)
		if err := e.Fit(col.Categorical); err != nil {
			return errors.Wrapf(err, "fit encoder for %s", name)
		}
		s.Add(e)
	}
	return nil
}

// TransformTable はエンコーダーを持つ列をコードの数値列に置き換える。
// 未知の値の数を列ごとに返す。
func (s *EncoderSet) TransformTable(t *dataset.Table) (map[string]int, error) {
	unseen := make(map[string]int)
	for _, name := range s.order {
		col, ok := t.Column(name)
		if !ok {
			return nil, errors.NewValueError("EncoderSet.TransformTable", "table has no column "+name)
		}
		if col.Kind != dataset.Categorical {
			return nil, errors.NewValueError("EncoderSet.TransformTable", "column "+name+" is already numeric")
		}
		codes, n, err := s.encoders[name].Transform(col.Categorical)
		if err != nil {
			return nil, err
		}
		if err := t.ReplaceWithNumeric(name, codes); err != nil {
			return nil, err
		}
		if n > 0 {
			unseen[name] = n
		}
	}
	return unseen, nil
}

type encoderSetJSON struct {
	Encoders []*LabelEncoder `json:"encoders"`
}

// MarshalJSON implements json.Marshaler.
func (s *EncoderSet) MarshalJSON() ([]byte, error) {
	out := encoderSetJSON{Encoders: make([]*LabelEncoder, 0, len(s.order))}
	for _, name := range s.order {
		out.Encoders = append(out.Encoders, s.encoders[name])
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *EncoderSet) UnmarshalJSON(data []byte) error {
	var raw encoderSetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "unmarshal encoder set")
	}
	s.order = nil
	s.encoders = make(map[string]*LabelEncoder, len(raw.Encoders))
	for _, e := range raw.Encoders {
		if e == nil {
			return errors.NewValidationError("encoders", "null encoder", nil)
		}
		if _, dup := s.encoders[e.Column]; dup {
			return errors.NewValidationError("encoders", "duplicate column", e.Column)
		}
		s.Add(e)
	}
	return nil
}

// Package salesforecast は店舗の月間売上をリニア回帰で予測する学習器とREST APIを提供する。
//
// 学習は CSV を読み込み、欠損値補完と IQR による外れ値の丸め、カテゴリ列の
// ラベルエンコーディング、標準化を行ってから最小二乗法でモデルを当てはめる。
// 学習結果はモデル・スケーラー・エンコーダー・メタデータの4つの JSON ファイルとして保存され、
// API サーバーはそれを読み込んで単件・バッチ予測を返す。
//
// # Packages
//
//   - dataset: CSV の読み込みと列の型推定
//   - preprocessing: Cleaner, LabelEncoder, StandardScaler
//   - linear: LinearRegression
//   - modelselection: TrainTestSplit, KFold, CrossValScore
//   - metrics: R², MAE, RMSE
//   - pipeline: 学習パイプラインと評価
//   - artifact: 成果物の保存、読み込み、検証
//   - inference: レコードから予測値への変換
//   - report: 残差や係数の図
//   - server: HTTP API
//
// # Quick Start
//
//	opts := pipeline.DefaultOptions()
//	opts.DataPath = "data/ventas_tiendas.csv"
//	res, err := pipeline.Train(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := res.Bundle.Save("models"); err != nil {
//	    log.Fatal(err)
//	}
//
//	adapter, err := inference.NewAdapter(res.Bundle)
//	pred, err := adapter.Predict(ctx, inference.WorkedExample())
//	fmt.Printf("%.2f (confidence %.2f)\n", pred.Value, pred.Confidence)
//
// Binaries live under cmd/: salesforecast-train と salesforecast-api。
// 設定は環境変数（.env も可）で行う。config パッケージを参照。
package salesforecast

package services

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
)

type Bank struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	LogoData string `json:"logoData"`
}

const (
	logosDir = "./static/bank-logos"
	demoSVG  = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" fill="#f0f0f0"/><path d="M100 60c-22.1 0-40 17.9-40 40s17.9 40 40 40 40-17.9 40-40-17.9-40-40-40zm0 65c-13.8 0-25-11.2-25-25s11.2-25 25-25 25 11.2 25 25-11.2 25-25 25z" fill="#999"/><text x="100" y="170" text-anchor="middle" font-family="Arial" font-size="14" fill="#666">BANK</text></svg>`
)

var bankLogos = map[string]string{
	"002": "bri.svg",
	"008": "mandiri.svg",
	"009": "bni.svg",
	"014": "bca.svg",
	"011": "danamon.svg",
	"013": "permata.svg",
	"022": "cimb-niaga.svg",
	"200": "btn.svg",
	"451": "bsi.svg",
	"153": "sinarmas.svg",
	"426": "mega.svg",
	"490": "neo-commerce.svg",
	"501": "digibank.svg",
	"535": "seabank.svg",
	"542": "jago.svg",
}

// bank codes follow the Indonesian interbank clearing directory
var indonesianBanks = []Bank{
	{Code: "002", Name: "Bank Rakyat Indonesia (BRI)"},
	{Code: "008", Name: "Bank Mandiri"},
	{Code: "009", Name: "Bank Negara Indonesia (BNI)"},
	{Code: "011", Name: "Bank Danamon"},
	{Code: "013", Name: "Bank Permata"},
	{Code: "014", Name: "Bank Central Asia (BCA)"},
	{Code: "016", Name: "Bank Maybank Indonesia"},
	{Code: "019", Name: "Bank Panin"},
	{Code: "022", Name: "Bank CIMB Niaga"},
	{Code: "023", Name: "Bank UOB Indonesia"},
	{Code: "028", Name: "Bank OCBC NISP"},
	{Code: "037", Name: "Bank Artha Graha"},
	{Code: "046", Name: "Bank DBS Indonesia"},
	{Code: "054", Name: "Bank Capital Indonesia"},
	{Code: "076", Name: "Bank Bumi Arta"},
	{Code: "087", Name: "Bank HSBC Indonesia"},
	{Code: "095", Name: "Bank JTrust Indonesia"},
	{Code: "097", Name: "Bank Mayapada"},
	{Code: "110", Name: "Bank BJB"},
	{Code: "111", Name: "Bank DKI"},
	{Code: "112", Name: "Bank BPD DIY"},
	{Code: "113", Name: "Bank Jateng"},
	{Code: "114", Name: "Bank Jatim"},
	{Code: "115", Name: "Bank Jambi"},
	{Code: "116", Name: "Bank Aceh"},
	{Code: "117", Name: "Bank Sumut"},
	{Code: "118", Name: "Bank Nagari"},
	{Code: "119", Name: "Bank Riau Kepri"},
	{Code: "120", Name: "Bank Sumsel Babel"},
	{Code: "121", Name: "Bank Lampung"},
	{Code: "122", Name: "Bank Kalsel"},
	{Code: "123", Name: "Bank Kalbar"},
	{Code: "124", Name: "Bank Kaltimtara"},
	{Code: "125", Name: "Bank Kalteng"},
	{Code: "126", Name: "Bank Sulselbar"},
	{Code: "127", Name: "Bank SulutGo"},
	{Code: "128", Name: "Bank NTB Syariah"},
	{Code: "129", Name: "Bank BPD Bali"},
	{Code: "130", Name: "Bank NTT"},
	{Code: "131", Name: "Bank Maluku Malut"},
	{Code: "132", Name: "Bank Papua"},
	{Code: "133", Name: "Bank Bengkulu"},
	{Code: "134", Name: "Bank Sulteng"},
	{Code: "135", Name: "Bank Sultra"},
	{Code: "137", Name: "Bank Banten"},
	{Code: "146", Name: "Bank of India Indonesia"},
	{Code: "147", Name: "Bank Muamalat"},
	{Code: "151", Name: "Bank Mestika"},
	{Code: "152", Name: "Bank Shinhan Indonesia"},
	{Code: "153", Name: "Bank Sinarmas"},
	{Code: "157", Name: "Bank Maspion"},
	{Code: "161", Name: "Bank Ganesha"},
	{Code: "164", Name: "Bank ICBC Indonesia"},
	{Code: "167", Name: "Bank QNB Indonesia"},
	{Code: "200", Name: "Bank Tabungan Negara (BTN)"},
	{Code: "212", Name: "Bank Woori Saudara"},
	{Code: "213", Name: "Bank BTPN"},
	{Code: "405", Name: "Bank Victoria Syariah"},
	{Code: "425", Name: "Bank BJB Syariah"},
	{Code: "426", Name: "Bank Mega"},
	{Code: "441", Name: "Bank KB Bukopin"},
	{Code: "451", Name: "Bank Syariah Indonesia (BSI)"},
	{Code: "484", Name: "Bank KEB Hana Indonesia"},
	{Code: "485", Name: "Bank MNC Internasional"},
	{Code: "490", Name: "Bank Neo Commerce"},
	{Code: "494", Name: "Bank Raya Indonesia"},
	{Code: "498", Name: "Bank SBI Indonesia"},
	{Code: "501", Name: "Bank Digital BCA (blu)"},
	{Code: "503", Name: "Bank Nobu"},
	{Code: "506", Name: "Bank Mega Syariah"},
	{Code: "513", Name: "Bank Ina Perdana"},
	{Code: "517", Name: "Bank Panin Dubai Syariah"},
	{Code: "521", Name: "Bank Bukopin Syariah"},
	{Code: "523", Name: "Bank Sahabat Sampoerna"},
	{Code: "526", Name: "Bank Oke Indonesia"},
	{Code: "535", Name: "SeaBank Indonesia"},
	{Code: "536", Name: "Bank BCA Syariah"},
	{Code: "542", Name: "Bank Jago"},
	{Code: "547", Name: "Bank BTPN Syariah"},
	{Code: "553", Name: "Bank Mayora"},
	{Code: "555", Name: "Bank Index Selindo"},
	{Code: "564", Name: "Bank Mantap"},
	{Code: "566", Name: "Bank Victoria International"},
	{Code: "567", Name: "Allo Bank Indonesia"},
}

var bankCodeIndex = func() map[string]string {
	idx := make(map[string]string, len(indonesianBanks))
	for _, b := range indonesianBanks {
		idx[b.Code] = b.Name
	}
	return idx
}()

// ValidBankCode reports whether a payout destination code is in the directory.
func ValidBankCode(code string) bool {
	_, ok := bankCodeIndex[code]
	return ok
}

type BankService struct{}

func NewBankService() *BankService {
	return &BankService{}
}

// GetAllBanks lists the supported payout banks.
// @Summary List supported banks
// @Tags banks
// @Produce json
// @Success 200 {array} Bank
// @Router /banks [get]
func (bs *BankService) GetAllBanks(w http.ResponseWriter, r *http.Request) {
	banks := make([]Bank, len(indonesianBanks))
	copy(banks, indonesianBanks)

	for i := range banks {
		banks[i].LogoData = bs.LoadLogo(banks[i].Code)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	json.NewEncoder(w).Encode(banks)
}

func (bs *BankService) LoadLogo(code string) string {
	filename, ok := bankLogos[code]
	if !ok {
		return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(demoSVG))
	}

	path := filepath.Join(logosDir, filename)
	if data, err := os.ReadFile(path); err == nil {
		return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(data)
	}

	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(demoSVG))
}

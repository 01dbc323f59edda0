// Package knowledge holds the static medication-safety knowledge tables:
// allergy substitution groups, pairwise drug interaction rules, condition
// contraindications, and food interactions. The tables are plain data,
// loaded once and never mutated; all matching logic lives in the service
// layer so the tables stay independently testable and versionable.
package knowledge

import "github.com/medsafe-server/internal/domain"

// InteractionRule is one pairwise drug interaction entry: taking the keyed
// drug together with Drug carries the described risk.
type InteractionRule struct {
	Drug        string
	Severity    domain.Severity
	Description string
}

// ContraindicationRule is one condition contraindication entry: the keyed
// condition makes Drug risky.
type ContraindicationRule struct {
	Drug        string
	Severity    domain.Severity
	Description string
}

// FoodRule is one food interaction entry. Unlike the other tables it
// carries its own recommendation (timing separation, avoidance) instead of
// a severity-derived generic one.
type FoodRule struct {
	Drug           string
	Severity       domain.Severity
	Description    string
	Recommendation string
}

// AllergyMappings maps a declared allergy to related substances that
// trigger the same reaction. Keys and values are lowercase.
var AllergyMappings = map[string][]string{
	"penicillin": {"penicillin", "amoxicillin", "ampicillin", "benzylpenicillin", "phenoxymethylpenicillin"},
	"sulfa":      {"sulfamethoxazole", "trimethoprim", "sulfadiazine", "sulfasalazine", "sulfisoxazole"},
	"aspirin":    {"aspirin", "acetylsalicylic acid", "salicylate", "methyl salicylate"},
	"codeine":    {"codeine", "hydrocodone", "oxycodone", "morphine", "tramadol"},
	"latex":      {"latex", "rubber", "natural rubber latex"},
	"iodine":     {"iodine", "contrast media", "povidone iodine", "iodinated contrast"},
	"shellfish":  {"shellfish", "iodine", "contrast media"},
	"eggs":       {"egg", "albumin", "influenza vaccine", "yellow fever vaccine"},
	"gelatin":    {"gelatin", "vaccines", "capsules"},
	"soy":        {"soy", "lecithin", "propofol", "fat emulsion"},

	// Drug-class allergies
	"nsaids":          {"ibuprofen", "naproxen", "diclofenac", "indomethacin", "celecoxib", "meloxicam"},
	"statins":         {"atorvastatin", "simvastatin", "rosuvastatin", "pravastatin", "lovastatin"},
	"ace inhibitors":  {"lisinopril", "enalapril", "captopril", "ramipril", "quinapril"},
	"beta blockers":   {"metoprolol", "propranolol", "atenolol", "carvedilol", "bisoprolol"},
	"quinolones":      {"ciprofloxacin", "levofloxacin", "moxifloxacin", "norfloxacin", "ofloxacin"},
	"macrolides":      {"azithromycin", "erythromycin", "clarithromycin", "roxithromycin"},
	"tetracyclines":   {"tetracycline", "doxycycline", "minocycline", "tigecycline"},
	"cephalosporins":  {"cephalexin", "ceftriaxone", "cefazolin", "cefuroxime", "ceftaroline"},
	"benzodiazepines": {"lorazepam", "diazepam", "alprazolam", "clonazepam", "midazolam"},
	"opioids":         {"morphine", "oxycodone", "hydrocodone", "fentanyl", "codeine", "tramadol"},
	"anticonvulsants": {"phenytoin", "carbamazepine", "valproic acid", "lamotrigine", "levetiracetam"},
	"antipsychotics":  {"haloperidol", "risperidone", "olanzapine", "quetiapine", "aripiprazole"},
}

// AllergyGroupKeys lists the AllergyMappings keys in a fixed evaluation
// order. The checkers iterate this slice instead of the map so repeated
// calls with the same input always produce findings in the same order.
var AllergyGroupKeys = []string{
	"penicillin", "sulfa", "aspirin", "codeine", "latex", "iodine",
	"shellfish", "eggs", "gelatin", "soy",
	"nsaids", "statins", "ace inhibitors", "beta blockers", "quinolones",
	"macrolides", "tetracyclines", "cephalosporins", "benzodiazepines",
	"opioids", "anticonvulsants", "antipsychotics",
}

// DrugInteractions maps a trigger drug to its pairwise interaction rules.
// Matching is by substring containment in either direction, so generic
// and brand components both hit.
var DrugInteractions = map[string][]InteractionRule{
	"warfarin": {
		{Drug: "aspirin", Severity: domain.SeverityMajor, Description: "Increased bleeding risk"},
		{Drug: "ibuprofen", Severity: domain.SeverityMajor, Description: "Increased bleeding risk"},
		{Drug: "acetaminophen", Severity: domain.SeverityModerate, Description: "May increase anticoagulant effect"},
		{Drug: "amiodarone", Severity: domain.SeverityMajor, Description: "Significantly increases warfarin effect"},
		{Drug: "metronidazole", Severity: domain.SeverityMajor, Description: "Increases warfarin effect"},
		{Drug: "fluconazole", Severity: domain.SeverityMajor, Description: "Increases warfarin effect"},
		{Drug: "trimethoprim", Severity: domain.SeverityModerate, Description: "May increase warfarin effect"},
	},
	"digoxin": {
		{Drug: "furosemide", Severity: domain.SeverityModerate, Description: "Increased risk of digoxin toxicity due to potassium loss"},
		{Drug: "amiodarone", Severity: domain.SeverityMajor, Description: "Significantly increases digoxin levels"},
		{Drug: "verapamil", Severity: domain.SeverityMajor, Description: "Increases digoxin levels"},
		{Drug: "quinidine", Severity: domain.SeverityMajor, Description: "Increases digoxin levels"},
		{Drug: "clarithromycin", Severity: domain.SeverityModerate, Description: "May increase digoxin levels"},
	},
	"metformin": {
		{Drug: "furosemide", Severity: domain.SeverityModerate, Description: "May increase metformin levels"},
		{Drug: "contrast media", Severity: domain.SeverityMajor, Description: "Risk of lactic acidosis"},
		{Drug: "alcohol", Severity: domain.SeverityModerate, Description: "Increased risk of lactic acidosis"},
	},
	"simvastatin": {
		{Drug: "amlodipine", Severity: domain.SeverityModerate, Description: "Increased risk of myopathy"},
		{Drug: "diltiazem", Severity: domain.SeverityModerate, Description: "Increased risk of myopathy"},
		{Drug: "verapamil", Severity: domain.SeverityModerate, Description: "Increased risk of myopathy"},
		{Drug: "cyclosporine", Severity: domain.SeverityMajor, Description: "Significantly increased risk of myopathy"},
		{Drug: "gemfibrozil", Severity: domain.SeverityMajor, Description: "Significantly increased risk of myopathy"},
	},
	"lisinopril": {
		{Drug: "potassium", Severity: domain.SeverityMajor, Description: "Risk of hyperkalemia"},
		{Drug: "spironolactone", Severity: domain.SeverityMajor, Description: "Risk of hyperkalemia"},
		{Drug: "ibuprofen", Severity: domain.SeverityModerate, Description: "Reduced antihypertensive effect"},
		{Drug: "lithium", Severity: domain.SeverityMajor, Description: "Increased lithium levels"},
	},
	"metoprolol": {
		{Drug: "verapamil", Severity: domain.SeverityMajor, Description: "Risk of heart block"},
		{Drug: "diltiazem", Severity: domain.SeverityMajor, Description: "Risk of heart block"},
		{Drug: "clonidine", Severity: domain.SeverityMajor, Description: "Rebound hypertension risk"},
		{Drug: "insulin", Severity: domain.SeverityModerate, Description: "May mask hypoglycemic symptoms"},
	},
}

// DrugInteractionKeys lists the DrugInteractions trigger keys in a fixed
// evaluation order.
var DrugInteractionKeys = []string{
	"warfarin", "digoxin", "metformin", "simvastatin", "lisinopril", "metoprolol",
}

// ConditionContraindications maps a medical condition to drugs that are
// risky or forbidden with it.
var ConditionContraindications = map[string][]ContraindicationRule{
	"diabetes": {
		{Drug: "prednisone", Severity: domain.SeverityMajor, Description: "Significantly increases blood glucose"},
		{Drug: "hydrochlorothiazide", Severity: domain.SeverityModerate, Description: "May increase blood glucose"},
		{Drug: "propranolol", Severity: domain.SeverityModerate, Description: "May mask hypoglycemic symptoms"},
		{Drug: "niacin", Severity: domain.SeverityModerate, Description: "May increase blood glucose"},
		{Drug: "growth hormone", Severity: domain.SeverityMajor, Description: "Significantly increases blood glucose"},
	},
	"hypertension": {
		{Drug: "pseudoephedrine", Severity: domain.SeverityMajor, Description: "May significantly increase blood pressure"},
		{Drug: "phenylephrine", Severity: domain.SeverityMajor, Description: "May significantly increase blood pressure"},
		{Drug: "ibuprofen", Severity: domain.SeverityModerate, Description: "May increase blood pressure"},
		{Drug: "naproxen", Severity: domain.SeverityModerate, Description: "May increase blood pressure"},
		{Drug: "prednisone", Severity: domain.SeverityModerate, Description: "May increase blood pressure"},
	},
	"kidney disease": {
		{Drug: "ibuprofen", Severity: domain.SeverityMajor, Description: "May worsen kidney function"},
		{Drug: "naproxen", Severity: domain.SeverityMajor, Description: "May worsen kidney function"},
		{Drug: "lisinopril", Severity: domain.SeverityMajor, Description: "May worsen kidney function in severe disease"},
		{Drug: "metformin", Severity: domain.SeverityMajor, Description: "Risk of lactic acidosis"},
		{Drug: "contrast media", Severity: domain.SeverityMajor, Description: "Risk of contrast-induced nephropathy"},
	},
	"liver disease": {
		{Drug: "acetaminophen", Severity: domain.SeverityMajor, Description: "Risk of liver toxicity"},
		{Drug: "simvastatin", Severity: domain.SeverityMajor, Description: "Risk of liver toxicity"},
		{Drug: "ketoconazole", Severity: domain.SeverityMajor, Description: "Risk of liver toxicity"},
		{Drug: "isoniazid", Severity: domain.SeverityMajor, Description: "Risk of liver toxicity"},
		{Drug: "valproic acid", Severity: domain.SeverityMajor, Description: "Risk of liver toxicity"},
	},
	"heart disease": {
		{Drug: "ibuprofen", Severity: domain.SeverityMajor, Description: "Increased risk of heart attack"},
		{Drug: "celecoxib", Severity: domain.SeverityMajor, Description: "Increased cardiovascular risk"},
		{Drug: "rosiglitazone", Severity: domain.SeverityMajor, Description: "Increased risk of heart failure"},
		{Drug: "doxorubicin", Severity: domain.SeverityMajor, Description: "Risk of cardiomyopathy"},
	},
	"asthma": {
		{Drug: "propranolol", Severity: domain.SeverityMajor, Description: "May trigger bronchospasm"},
		{Drug: "aspirin", Severity: domain.SeverityMajor, Description: "May trigger bronchospasm in aspirin-sensitive asthma"},
		{Drug: "timolol", Severity: domain.SeverityMajor, Description: "May trigger bronchospasm"},
		{Drug: "atenolol", Severity: domain.SeverityModerate, Description: "May trigger bronchospasm"},
	},
	"pregnancy": {
		{Drug: "warfarin", Severity: domain.SeverityContraindicated, Description: "Teratogenic - causes birth defects"},
		{Drug: "isotretinoin", Severity: domain.SeverityContraindicated, Description: "Highly teratogenic"},
		{Drug: "lisinopril", Severity: domain.SeverityContraindicated, Description: "Causes fetal kidney damage"},
		{Drug: "methotrexate", Severity: domain.SeverityContraindicated, Description: "Teratogenic and abortifacient"},
		{Drug: "phenytoin", Severity: domain.SeverityMajor, Description: "Risk of fetal hydantoin syndrome"},
	},
	"glaucoma": {
		{Drug: "atropine", Severity: domain.SeverityMajor, Description: "May increase intraocular pressure"},
		{Drug: "scopolamine", Severity: domain.SeverityMajor, Description: "May increase intraocular pressure"},
		{Drug: "ipratropium", Severity: domain.SeverityModerate, Description: "May increase intraocular pressure"},
		{Drug: "amitriptyline", Severity: domain.SeverityModerate, Description: "May increase intraocular pressure"},
	},
}

// ConditionKeys lists the ConditionContraindications keys in a fixed
// evaluation order.
var ConditionKeys = []string{
	"diabetes", "hypertension", "kidney disease", "liver disease",
	"heart disease", "asthma", "pregnancy", "glaucoma",
}

// FoodInteractions maps a food or dietary substance to the drugs it
// affects.
var FoodInteractions = map[string][]FoodRule{
	"alcohol": {
		{Drug: "metronidazole", Severity: domain.SeverityMajor, Description: "Disulfiram-like reaction", Recommendation: "Avoid alcohol completely during treatment and for 72 hours after"},
		{Drug: "warfarin", Severity: domain.SeverityMajor, Description: "Increased bleeding risk", Recommendation: "Limit alcohol consumption"},
		{Drug: "acetaminophen", Severity: domain.SeverityMajor, Description: "Increased liver toxicity risk", Recommendation: "Limit alcohol consumption"},
		{Drug: "lorazepam", Severity: domain.SeverityMajor, Description: "Increased sedation and respiratory depression", Recommendation: "Avoid alcohol completely"},
		{Drug: "zolpidem", Severity: domain.SeverityMajor, Description: "Increased sedation and confusion", Recommendation: "Avoid alcohol completely"},
	},
	"caffeine": {
		{Drug: "theophylline", Severity: domain.SeverityMajor, Description: "Increased theophylline levels and toxicity", Recommendation: "Limit caffeine intake significantly"},
		{Drug: "ciprofloxacin", Severity: domain.SeverityModerate, Description: "Increased caffeine levels", Recommendation: "Reduce caffeine intake"},
		{Drug: "iron", Severity: domain.SeverityModerate, Description: "Reduced iron absorption", Recommendation: "Take iron 1 hour before or 2 hours after caffeine"},
		{Drug: "lithium", Severity: domain.SeverityModerate, Description: "May affect lithium levels", Recommendation: "Maintain consistent caffeine intake"},
	},
	"grapefruit": {
		{Drug: "simvastatin", Severity: domain.SeverityMajor, Description: "Significantly increased drug levels", Recommendation: "Avoid grapefruit completely"},
		{Drug: "amlodipine", Severity: domain.SeverityMajor, Description: "Increased drug levels and hypotension risk", Recommendation: "Avoid grapefruit completely"},
		{Drug: "cyclosporine", Severity: domain.SeverityMajor, Description: "Increased drug levels and toxicity", Recommendation: "Avoid grapefruit completely"},
		{Drug: "buspirone", Severity: domain.SeverityMajor, Description: "Increased drug levels", Recommendation: "Avoid grapefruit completely"},
		{Drug: "sertraline", Severity: domain.SeverityModerate, Description: "May increase drug levels", Recommendation: "Avoid grapefruit"},
	},
	"dairy": {
		{Drug: "tetracycline", Severity: domain.SeverityMajor, Description: "Significantly reduced absorption", Recommendation: "Take 1 hour before or 2 hours after dairy"},
		{Drug: "ciprofloxacin", Severity: domain.SeverityMajor, Description: "Significantly reduced absorption", Recommendation: "Take 2 hours before or 6 hours after dairy"},
		{Drug: "alendronate", Severity: domain.SeverityMajor, Description: "Significantly reduced absorption", Recommendation: "Take 30 minutes before any food or drink except water"},
		{Drug: "levothyroxine", Severity: domain.SeverityModerate, Description: "Reduced absorption", Recommendation: "Take 4 hours apart from dairy"},
	},
	"high sodium": {
		{Drug: "lisinopril", Severity: domain.SeverityModerate, Description: "Reduced antihypertensive effect", Recommendation: "Maintain low sodium diet"},
		{Drug: "furosemide", Severity: domain.SeverityModerate, Description: "Reduced diuretic effect", Recommendation: "Limit sodium intake"},
		{Drug: "lithium", Severity: domain.SeverityMajor, Description: "Increased lithium levels", Recommendation: "Maintain consistent sodium intake"},
	},
	"vitamin k": {
		{Drug: "warfarin", Severity: domain.SeverityMajor, Description: "Reduced anticoagulant effect", Recommendation: "Maintain consistent vitamin K intake"},
	},
	"high fiber": {
		{Drug: "digoxin", Severity: domain.SeverityModerate, Description: "May reduce absorption", Recommendation: "Take medication 2 hours apart from high fiber meals"},
		{Drug: "lovastatin", Severity: domain.SeverityModerate, Description: "May reduce absorption", Recommendation: "Take with low-fiber meal"},
	},
}

// FoodKeys lists the FoodInteractions keys in a fixed evaluation order.
var FoodKeys = []string{
	"alcohol", "caffeine", "grapefruit", "dairy",
	"high sodium", "vitamin k", "high fiber",
}

// CommonMedicineNames is the dictionary used as a fallback when no dosage
// pattern matches a free-text prescription line.
var CommonMedicineNames = []string{
	// Antibiotics
	"amoxicillin", "azithromycin", "ciprofloxacin", "doxycycline", "cephalexin",
	// Pain relievers
	"paracetamol", "ibuprofen", "diclofenac", "aspirin", "tramadol",
	// Diabetes
	"metformin", "glimepiride", "insulin", "gliclazide",
	// Hypertension
	"amlodipine", "telmisartan", "atenolol", "losartan", "ramipril",
	// Acid reducers
	"omeprazole", "pantoprazole", "ranitidine", "domperidone",
	// Common brand names
	"crocin", "combiflam", "volini", "digene", "pudin",
}
